package message

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusSent, StatusRead, true},
		{StatusDelivered, StatusRead, true},
		{StatusRead, StatusRead, true},
		{StatusRead, StatusDelivered, false},
		{StatusSent, StatusDeleted, true},
		{StatusDeleted, StatusRead, false},
		{StatusFailed, StatusRead, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" urgent", "invoice", "", "urgent", "invoice "})
	assert.Equal(t, []string{"urgent", "invoice"}, got)
}

func TestMessageParticipants(t *testing.T) {
	sender, recipient, other := uuid.New(), uuid.New(), uuid.New()
	m := Message{SenderID: sender, RecipientID: uuid.NullUUID{UUID: recipient, Valid: true}}

	assert.True(t, m.IsParticipant(sender))
	assert.True(t, m.IsParticipant(recipient))
	assert.False(t, m.IsParticipant(other))
	assert.True(t, m.IsRecipient(recipient))
	assert.False(t, m.IsRecipient(sender))
}
