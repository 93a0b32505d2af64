package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"messaging-core/internal/commands"
	"messaging-core/internal/domain/message"
	"messaging-core/internal/domain/user"
	"messaging-core/internal/events"
	"messaging-core/internal/metrics"
	"messaging-core/internal/proxy"
	"messaging-core/internal/repository"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageView is a message with identity fields and attachments resolved.
type MessageView struct {
	message.Message
	Sender      *user.Identity
	Recipient   *user.Identity
	Partner     *user.Identity
	Attachments []AttachmentView
}

type FailedAttachment struct {
	FileName string
	Err      error
}

type SendResult struct {
	Message           MessageView
	FailedAttachments []FailedAttachment
}

type MessagesPage struct {
	Messages       []MessageView
	NewMessages    []MessageView
	TotalCount     int64
	UnreadCount    int64
	HasNewMessages bool
	NextCursor     sql.NullTime
}

type ReadState struct {
	MessageID uuid.UUID
	Status    message.Status
	IsRead    bool
	ReadAt    sql.NullTime
	Changed   bool
}

// MessagingDeps are the collaborators of MessagingService. Gate may be nil,
// which yields the internal-only configuration: every external send is
// denied.
type MessagingDeps struct {
	Messages    repository.MessageRepository
	Attachments *AttachmentStore
	Identities  *IdentityDirectory
	Notifier    *events.Notifier
	Gate        proxy.RelationshipGate
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type MessagingService struct {
	messages    repository.MessageRepository
	attachments *AttachmentStore
	identities  *IdentityDirectory
	notifier    *events.Notifier
	metrics     *metrics.Metrics
	log         *zap.Logger
	bus         *commands.Bus
}

func NewMessagingService(deps MessagingDeps) *MessagingService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	svc := &MessagingService{
		messages:    deps.Messages,
		attachments: deps.Attachments,
		identities:  deps.Identities,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		log:         log,
		bus:         commands.NewBus(proxy.NewPartnerGuard(deps.Gate)),
	}
	svc.RegisterHandlers()
	return svc
}

func (s *MessagingService) RegisterHandlers() {
	s.bus.Register(commands.TypeSendMessage, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.SendMessageCommand)
		if !ok {
			return commands.Result{}, core_errors.ErrValidation
		}
		res, err := s.executeSend(ctx, typed.Normalized())
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: res.Message.ID.String(), Payload: res}, nil
	}))
	s.bus.Register(commands.TypeMarkAsRead, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.MarkAsReadCommand)
		if !ok {
			return commands.Result{}, core_errors.ErrValidation
		}
		state, err := s.executeMarkAsRead(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: typed.MessageID.String(), Payload: state}, nil
	}))
	s.bus.Register(commands.TypeMarkAllAsRead, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.MarkAllAsReadCommand)
		if !ok {
			return commands.Result{}, core_errors.ErrValidation
		}
		n, err := s.messages.MarkAllRead(ctx, typed.UserID)
		if err != nil {
			return commands.Result{}, upstream("mark all read", err)
		}
		return commands.Result{AggregateID: typed.UserID.String(), Payload: n}, nil
	}))
	s.bus.Register(commands.TypeDeleteMessage, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.DeleteMessageCommand)
		if !ok {
			return commands.Result{}, core_errors.ErrValidation
		}
		if err := s.executeDelete(ctx, typed); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: typed.MessageID.String()}, nil
	}))
	s.bus.Register(commands.TypeUploadAttachment, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.UploadAttachmentCommand)
		if !ok {
			return commands.Result{}, core_errors.ErrValidation
		}
		view, err := s.executeUpload(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: view.ID.String(), Payload: view}, nil
	}))
}

// SendMessage creates a message. External sends pass through the
// relationship gate before anything is written.
func (s *MessagingService) SendMessage(ctx context.Context, cmd commands.SendMessageCommand) (*SendResult, error) {
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		if errors.Is(err, proxy.ErrNoRelationship) {
			s.metrics.SendDenied()
			s.log.Info("send denied",
				zap.String("sender_id", cmd.SenderID.String()),
				zap.String("kind", string(cmd.Kind())))
		}
		return nil, err
	}
	return res.Payload.(*SendResult), nil
}

func (s *MessagingService) executeSend(ctx context.Context, cmd commands.SendMessageCommand) (*SendResult, error) {
	for _, file := range cmd.Attachments {
		if err := s.attachments.CheckSize(file); err != nil {
			return nil, err
		}
	}

	msg := message.Message{
		ID:          uuid.New(),
		Kind:        cmd.Kind(),
		SenderID:    cmd.SenderID,
		RecipientID: cmd.RecipientID,
		PartnerID:   cmd.PartnerID,
		Content:     cmd.Content,
		ContentType: cmd.ContentType,
		Priority:    cmd.Priority,
		Category:    cmd.Category,
		Status:      message.StatusSent,
		ReplyToID:   cmd.ReplyToID,
		Tags:        cmd.Tags,
		Metadata:    cmd.Metadata,
	}
	if cmd.Subject != "" {
		msg.Subject = sql.NullString{String: cmd.Subject, Valid: true}
	}
	if cmd.RelatedOrderID != "" {
		msg.RelatedOrderID = sql.NullString{String: cmd.RelatedOrderID, Valid: true}
	}

	threadID, err := s.resolveThread(ctx, cmd, msg.Kind)
	if err != nil {
		return nil, err
	}
	if threadID == uuid.Nil {
		threadID = msg.ID
	}
	msg.ThreadID = uuid.NullUUID{UUID: threadID, Valid: true}

	if err := s.messages.Create(ctx, &msg); err != nil {
		return nil, upstream("insert message", err)
	}
	s.metrics.MessageSent(string(msg.Kind))

	result := &SendResult{}
	var stored []AttachmentView
	if len(cmd.Attachments) > 0 {
		for _, r := range s.attachments.Attach(ctx, msg.ID, msg.SenderID, cmd.Attachments) {
			if r.Err != nil {
				s.log.Warn("attachment failed",
					zap.String("message_id", msg.ID.String()),
					zap.String("file_name", r.FileName),
					zap.Error(r.Err))
				result.FailedAttachments = append(result.FailedAttachments, FailedAttachment{FileName: r.FileName, Err: r.Err})
				continue
			}
			stored = append(stored, AttachmentView{Attachment: *r.Attachment, URL: r.URL})
		}
	}

	s.notify(ctx, &events.MessageNewEvent{
		MessageID:   msg.ID,
		Kind:        string(msg.Kind),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		PartnerID:   msg.PartnerID,
		ThreadID:    msg.ThreadID,
		Subject:     msg.Subject.String,
		Priority:    string(msg.Priority),
		CreatedAt:   msg.CreatedAt,
	})

	views := s.hydrate(ctx, []message.Message{msg}, map[uuid.UUID][]AttachmentView{msg.ID: stored})
	result.Message = views[0]
	return result, nil
}

// resolveThread returns the thread the new message belongs to, or uuid.Nil
// when it starts a new one.
func (s *MessagingService) resolveThread(ctx context.Context, cmd commands.SendMessageCommand, kind message.Kind) (uuid.UUID, error) {
	if cmd.ReplyToID.Valid {
		parent, err := s.visibleMessage(ctx, cmd.SenderID, cmd.ReplyToID.UUID)
		if err != nil {
			return uuid.Nil, err
		}
		if parent.Kind != kind {
			return uuid.Nil, fmt.Errorf("%w: reply must have the same kind as its parent", core_errors.ErrPermissionDenied)
		}
		threadID := parent.ID
		if parent.ThreadID.Valid {
			threadID = parent.ThreadID.UUID
		}
		if cmd.ThreadID.Valid && cmd.ThreadID.UUID != threadID {
			return uuid.Nil, fmt.Errorf("%w: thread_id does not match the replied message", core_errors.ErrValidation)
		}
		return threadID, nil
	}

	if cmd.ThreadID.Valid {
		root, err := s.visibleMessage(ctx, cmd.SenderID, cmd.ThreadID.UUID)
		if err != nil {
			return uuid.Nil, err
		}
		if root.ThreadID.Valid && root.ThreadID.UUID != root.ID {
			return uuid.Nil, fmt.Errorf("%w: thread_id does not name a thread root", core_errors.ErrValidation)
		}
		if root.Kind != kind {
			return uuid.Nil, fmt.Errorf("%w: thread has a different kind", core_errors.ErrPermissionDenied)
		}
		return root.ID, nil
	}
	return uuid.Nil, nil
}

// visibleMessage loads a live message the user participates in. Anything
// else is reported as not found.
func (s *MessagingService) visibleMessage(ctx context.Context, userID, messageID uuid.UUID) (message.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, upstream("load message", err)
	}
	if msg.Status == message.StatusDeleted || !msg.IsParticipant(userID) {
		return message.Message{}, core_errors.ErrNotFound
	}
	return msg, nil
}

func (s *MessagingService) GetMessages(ctx context.Context, userID uuid.UUID, filter MessageFilter) (*MessagesPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	q := filter.query(userID)

	list, total, err := s.messages.Query(ctx, q)
	if err != nil {
		return nil, upstream("query messages", err)
	}
	unread, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		return nil, upstream("count unread", err)
	}

	page := &MessagesPage{
		TotalCount:  total,
		UnreadCount: unread,
		NewMessages: []MessageView{},
	}

	if filter.LastCheck.Valid {
		scope := q
		scope.Limit, scope.Offset = 0, 0
		page.HasNewMessages, err = s.messages.ExistsSince(ctx, scope, filter.LastCheck.Time)
		if err != nil {
			return nil, upstream("check new messages", err)
		}
		page.NextCursor = filter.LastCheck
	}

	ids := make([]uuid.UUID, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
		if !page.NextCursor.Valid || m.CreatedAt.After(page.NextCursor.Time) {
			page.NextCursor = sql.NullTime{Time: m.CreatedAt, Valid: true}
		}
	}
	attachments, err := s.attachments.ListMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	page.Messages = s.hydrate(ctx, list, attachments)
	if filter.LastCheck.Valid {
		for _, v := range page.Messages {
			if v.CreatedAt.After(filter.LastCheck.Time) {
				page.NewMessages = append(page.NewMessages, v)
			}
		}
	}
	return page, nil
}

func (s *MessagingService) GetMessage(ctx context.Context, userID, messageID uuid.UUID) (*MessageView, error) {
	msg, err := s.visibleMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.attachments.List(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	views := s.hydrate(ctx, []message.Message{msg}, map[uuid.UUID][]AttachmentView{msg.ID: attachments})
	return &views[0], nil
}

// GetThread returns the thread oldest first, limited to messages the user
// takes part in.
func (s *MessagingService) GetThread(ctx context.Context, userID, threadID uuid.UUID) ([]MessageView, error) {
	list, err := s.messages.ListThread(ctx, threadID)
	if err != nil {
		return nil, upstream("list thread", err)
	}
	visible := make([]message.Message, 0, len(list))
	ids := make([]uuid.UUID, 0, len(list))
	for _, m := range list {
		if m.IsParticipant(userID) {
			visible = append(visible, m)
			ids = append(ids, m.ID)
		}
	}
	if len(visible) == 0 {
		return nil, core_errors.ErrNotFound
	}
	attachments, err := s.attachments.ListMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, visible, attachments), nil
}

func (s *MessagingService) MarkAsRead(ctx context.Context, messageID, userID uuid.UUID) (*ReadState, error) {
	res, err := s.bus.Execute(ctx, commands.MarkAsReadCommand{MessageID: messageID, UserID: userID})
	if err != nil {
		return nil, err
	}
	return res.Payload.(*ReadState), nil
}

func (s *MessagingService) executeMarkAsRead(ctx context.Context, cmd commands.MarkAsReadCommand) (*ReadState, error) {
	msg, err := s.messages.GetByID(ctx, cmd.MessageID)
	if err != nil {
		return nil, upstream("load message", err)
	}
	if msg.Status == message.StatusDeleted {
		return nil, core_errors.ErrNotFound
	}
	if !msg.IsRecipient(cmd.UserID) {
		return nil, fmt.Errorf("%w: only the recipient can mark a message read", core_errors.ErrPermissionDenied)
	}

	var changed bool
	if message.CanTransition(msg.Status, message.StatusRead) {
		if changed, err = s.messages.MarkRead(ctx, msg.ID, cmd.UserID); err != nil {
			return nil, upstream("mark read", err)
		}
	}
	if changed {
		if msg, err = s.messages.GetByID(ctx, cmd.MessageID); err != nil {
			return nil, upstream("reload message", err)
		}
		s.notify(ctx, &events.MessageReadEvent{
			MessageID:   msg.ID,
			SenderID:    msg.SenderID,
			RecipientID: cmd.UserID,
			ReadAt:      msg.ReadAt.Time,
		})
	}
	return &ReadState{
		MessageID: msg.ID,
		Status:    msg.Status,
		IsRead:    msg.IsRead,
		ReadAt:    msg.ReadAt,
		Changed:   changed,
	}, nil
}

func (s *MessagingService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := s.bus.Execute(ctx, commands.MarkAllAsReadCommand{UserID: userID})
	if err != nil {
		return 0, err
	}
	return res.Payload.(int64), nil
}

// UnreadCount is always computed from the current rows.
func (s *MessagingService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		return 0, upstream("count unread", err)
	}
	return n, nil
}

func (s *MessagingService) DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	_, err := s.bus.Execute(ctx, commands.DeleteMessageCommand{MessageID: messageID, UserID: userID})
	return err
}

func (s *MessagingService) executeDelete(ctx context.Context, cmd commands.DeleteMessageCommand) error {
	msg, err := s.visibleMessage(ctx, cmd.UserID, cmd.MessageID)
	if err != nil {
		return err
	}
	if msg.SenderID != cmd.UserID {
		return fmt.Errorf("%w: only the sender can delete a message", core_errors.ErrPermissionDenied)
	}
	if err := s.messages.SoftDelete(ctx, msg.ID, cmd.UserID); err != nil {
		return upstream("delete message", err)
	}
	s.notify(ctx, &events.MessageDeletedEvent{
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		PartnerID:   msg.PartnerID,
	})
	return nil
}

// UploadAttachment adds one file to an existing message. Only the sender
// may attach files.
func (s *MessagingService) UploadAttachment(ctx context.Context, cmd commands.UploadAttachmentCommand) (*AttachmentView, error) {
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return res.Payload.(*AttachmentView), nil
}

func (s *MessagingService) executeUpload(ctx context.Context, cmd commands.UploadAttachmentCommand) (*AttachmentView, error) {
	msg, err := s.visibleMessage(ctx, cmd.UploaderID, cmd.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != cmd.UploaderID {
		return nil, fmt.Errorf("%w: only the sender can attach files", core_errors.ErrPermissionDenied)
	}
	att, err := s.attachments.Store(ctx, msg.ID, cmd.UploaderID, cmd.File)
	if err != nil {
		return nil, err
	}
	return &AttachmentView{Attachment: att, URL: s.attachments.URL(ctx, att.FilePath)}, nil
}

func (s *MessagingService) ListAttachments(ctx context.Context, userID, messageID uuid.UUID) ([]AttachmentView, error) {
	if _, err := s.visibleMessage(ctx, userID, messageID); err != nil {
		return nil, err
	}
	return s.attachments.List(ctx, messageID)
}

func (s *MessagingService) notify(ctx context.Context, event events.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Debug("notification incomplete",
			zap.String("event_type", event.EventType()),
			zap.String("aggregate_id", event.AggregateID()),
			zap.Error(err))
	}
}

func (s *MessagingService) hydrate(ctx context.Context, list []message.Message, attachments map[uuid.UUID][]AttachmentView) []MessageView {
	userIDs := make([]uuid.UUID, 0, len(list)*2)
	partnerIDs := make([]uuid.UUID, 0)
	for _, m := range list {
		userIDs = append(userIDs, m.SenderID)
		if m.RecipientID.Valid {
			userIDs = append(userIDs, m.RecipientID.UUID)
		}
		if m.PartnerID.Valid {
			partnerIDs = append(partnerIDs, m.PartnerID.UUID)
		}
	}
	users := s.identities.Users(ctx, userIDs)
	partners := s.identities.Partners(ctx, partnerIDs)

	views := make([]MessageView, 0, len(list))
	for _, m := range list {
		v := MessageView{Message: m, Attachments: attachments[m.ID]}
		if v.Attachments == nil {
			v.Attachments = []AttachmentView{}
		}
		v.Sender = lookup(users, m.SenderID, true)
		v.Recipient = lookup(users, m.RecipientID.UUID, m.RecipientID.Valid)
		v.Partner = lookup(partners, m.PartnerID.UUID, m.PartnerID.Valid)
		views = append(views, v)
	}
	return views
}

func lookup(idents map[uuid.UUID]user.Identity, id uuid.UUID, ok bool) *user.Identity {
	if !ok {
		return nil
	}
	ident, found := idents[id]
	if !found {
		return nil
	}
	return &ident
}

// upstream keeps the not found and conflict classifications of store
// errors and marks everything else as an upstream failure.
func upstream(op string, err error) error {
	switch {
	case errors.Is(err, core_errors.ErrNotFound), errors.Is(err, core_errors.ErrConflict):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %s: %v", core_errors.ErrUpstream, op, err)
}
