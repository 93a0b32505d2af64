// Package inmem holds map-backed repositories used by the memory driver
// and as test doubles. They follow the Postgres repositories' semantics,
// including server-assigned timestamps and insertion sequence numbers.
package inmem

import (
	"sync"
	"time"

	"messaging-core/internal/domain/message"
	"messaging-core/internal/domain/partner"
	"messaging-core/internal/domain/user"
)

// Store is shared by the repositories so cross-table checks (attachment
// owner exists, reply target exists) see one consistent state.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int64

	messages      map[string]*message.Message
	attachments   map[string][]message.Attachment
	relationships []partner.Relationship
	users         map[string]user.User
	partners      map[string]user.Partner
}

type Option func(*Store)

// WithClock replaces the wall clock used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		messages:    make(map[string]*message.Message),
		attachments: make(map[string][]message.Attachment),
		users:       make(map[string]user.User),
		partners:    make(map[string]user.Partner),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp matches the microsecond precision of timestamptz columns.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
