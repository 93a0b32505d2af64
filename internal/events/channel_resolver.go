package events

import "github.com/google/uuid"

// ChannelResolver determines which channels an event is published to
type ChannelResolver interface {
	ResolveChannels(event Event) []string
}

// ParticipantChannelResolver routes message events to the participants'
// user channels and, for external messages, the partner channel.
type ParticipantChannelResolver struct{}

func NewParticipantChannelResolver() *ParticipantChannelResolver {
	return &ParticipantChannelResolver{}
}

func (r *ParticipantChannelResolver) ResolveChannels(event Event) []string {
	var channels []string

	switch e := event.(type) {
	case *MessageNewEvent:
		channels = appendUser(channels, e.RecipientID)
		channels = append(channels, UserChannel(e.SenderID))
		if e.PartnerID.Valid {
			channels = append(channels, PartnerChannel(e.PartnerID.UUID))
		}
	case *MessageReadEvent:
		channels = append(channels, UserChannel(e.SenderID), UserChannel(e.RecipientID))
	case *MessageDeletedEvent:
		channels = appendUser(channels, e.RecipientID)
		channels = append(channels, UserChannel(e.SenderID))
		if e.PartnerID.Valid {
			channels = append(channels, PartnerChannel(e.PartnerID.UUID))
		}
	}

	return dedupe(channels)
}

func appendUser(channels []string, id uuid.NullUUID) []string {
	if id.Valid {
		return append(channels, UserChannel(id.UUID))
	}
	return channels
}

// dedupe drops repeats such as a note-to-self landing on one user channel twice.
func dedupe(channels []string) []string {
	seen := make(map[string]struct{}, len(channels))
	out := channels[:0]
	for _, c := range channels {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
