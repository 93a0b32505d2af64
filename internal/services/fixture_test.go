package services

import (
	"database/sql"
	"time"

	"messaging-core/internal/domain/partner"
	"messaging-core/internal/domain/user"
	"messaging-core/internal/events"
	"messaging-core/internal/metrics"
	"messaging-core/internal/proxy"
	"messaging-core/internal/repository/inmem"
	"messaging-core/internal/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type fixture struct {
	store       *inmem.Store
	attachRepo  *inmem.AttachmentRepository
	blobs       *storage.MemoryStore
	bus         *events.LocalBus
	metrics     *metrics.Metrics
	attachments *AttachmentStore
	svc         *MessagingService

	alice, bob, carol uuid.UUID
	partnerID         uuid.UUID
}

// stepClock returns start, start+step, start+2*step, ...
func stepClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(step)
		return t
	}
}

func newFixture(opts ...inmem.Option) *fixture {
	f := &fixture{
		alice:     uuid.New(),
		bob:       uuid.New(),
		carol:     uuid.New(),
		partnerID: uuid.New(),
	}
	f.store = inmem.NewStore(opts...)
	f.store.AddUser(user.User{ID: f.alice, DisplayName: "Alice"})
	f.store.AddUser(user.User{ID: f.bob, DisplayName: "Bob"})
	f.store.AddUser(user.User{ID: f.carol, DisplayName: "Carol"})
	f.store.AddPartner(user.Partner{ID: f.partnerID, Name: "Acme Supply"})
	f.store.AddRelationship(partner.Relationship{
		UserAID:   f.alice,
		UserBID:   f.bob,
		PartnerID: f.partnerID,
		Status:    partner.StatusActive,
	})

	f.attachRepo = inmem.NewAttachmentRepository(f.store)
	f.blobs = storage.NewMemoryStore("https://files.test")
	f.bus = events.NewLocalBus()
	f.metrics = metrics.New(prometheus.NewRegistry())
	f.attachments = NewAttachmentStore(f.blobs, f.attachRepo, 1<<20, f.metrics, nil)

	f.svc = NewMessagingService(MessagingDeps{
		Messages:    inmem.NewMessageRepository(f.store),
		Attachments: f.attachments,
		Identities:  NewIdentityDirectory(inmem.NewIdentityRepository(f.store), nil, nil),
		Notifier:    events.NewNotifier(f.bus, nil, f.metrics, nil),
		Gate:        proxy.NewAccessControl(inmem.NewRelationshipRepository(f.store), nil),
		Metrics:     f.metrics,
	})
	return f
}

func sqlTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}
