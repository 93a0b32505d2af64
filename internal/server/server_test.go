package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"messaging-core/config"
	"messaging-core/internal/domain/partner"
	"messaging-core/internal/domain/user"
	"messaging-core/internal/events"
	"messaging-core/internal/handler"
	"messaging-core/internal/metrics"
	"messaging-core/internal/proxy"
	"messaging-core/internal/redis"
	"messaging-core/internal/repository/inmem"
	"messaging-core/internal/services"
	"messaging-core/internal/storage"
	"messaging-core/internal/transport/httpdto"
	"messaging-core/pkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	engine            http.Handler
	auth              *services.AuthService
	alice, bob, carol uuid.UUID
	partnerID         uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		AppMode:            TestMode,
		AppPort:            "0",
		JWTSecret:          "test-secret",
		MaxAttachmentBytes: 1 << 20,
	}
	env := &testEnv{
		alice:     uuid.New(),
		bob:       uuid.New(),
		carol:     uuid.New(),
		partnerID: uuid.New(),
	}

	store := inmem.NewStore()
	store.AddUser(user.User{ID: env.alice, DisplayName: "Alice"})
	store.AddUser(user.User{ID: env.bob, DisplayName: "Bob"})
	store.AddUser(user.User{ID: env.carol, DisplayName: "Carol"})
	store.AddPartner(user.Partner{ID: env.partnerID, Name: "Acme Supply"})
	store.AddRelationship(partner.Relationship{
		UserAID:   env.alice,
		UserBID:   env.bob,
		PartnerID: env.partnerID,
		Status:    partner.StatusActive,
	})

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	blobs := storage.NewMemoryStore("https://files.test/files")
	messaging := services.NewMessagingService(services.MessagingDeps{
		Messages:    inmem.NewMessageRepository(store),
		Attachments: services.NewAttachmentStore(blobs, inmem.NewAttachmentRepository(store), cfg.MaxAttachmentBytes, m, nil),
		Identities:  services.NewIdentityDirectory(inmem.NewIdentityRepository(store), nil, nil),
		Notifier:    events.NewNotifier(events.NewLocalBus(), nil, m, nil),
		Gate:        proxy.NewAccessControl(inmem.NewRelationshipRepository(store), nil),
		Metrics:     m,
	})
	env.auth = services.NewAuthService(cfg)

	srv := New(cfg, logger.NewNop())
	srv.SetupRoutes(&Handlers{Messages: handler.NewMessageHandler(messaging)}, Deps{
		Auth:     env.auth,
		Limiter:  redis.NewLocalLimiter(redis.RateLimitConfig{MessageLimit: 100, MessageWindow: time.Minute}),
		Metrics:  m,
		Gatherer: registry,
		Files:    blobs,
	})
	env.engine = srv.Engine()
	return env
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := e.auth.IssueAccessToken(userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, as uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, as))
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) httpdto.Response[T] {
	t.Helper()
	var resp httpdto.Response[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (e *testEnv) send(t *testing.T, as uuid.UUID, req httpdto.SendMessageRequest) httpdto.SendMessageResponse {
	t.Helper()
	w := e.do(t, as, http.MethodPost, "/v1/messages", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[httpdto.SendMessageResponse](t, w).Data
}

func TestPingAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, uuid.Nil, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = env.do(t, uuid.Nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, uuid.Nil, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "messaging_http_request_duration_seconds")
}

func TestMessagesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, uuid.Nil, http.MethodGet, "/v1/messages", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[any](t, w).Code)
}

func TestSendAndPoll(t *testing.T) {
	env := newTestEnv(t)

	sent := env.send(t, env.alice, httpdto.SendMessageRequest{
		RecipientID: env.bob.String(),
		Subject:     "Quarterly numbers",
		Content:     "See attached",
		Tags:        []string{"finance", "finance"},
		Attachments: []httpdto.AttachmentUpload{{
			FileName:      "report.pdf",
			MimeType:      "application/pdf",
			ContentBase64: "JVBERi0xLjQ=",
		}},
	})
	assert.Equal(t, sent.Message.ID, sent.MessageID)
	assert.Equal(t, "internal", sent.Message.Kind)
	assert.Equal(t, "sent", sent.Message.Status)
	assert.Equal(t, []string{"finance"}, sent.Message.Tags)
	require.Len(t, sent.Message.Attachments, 1)
	assert.Equal(t, int64(8), sent.Message.Attachments[0].FileSize)
	assert.Empty(t, sent.FailedAttachments)
	require.NotNil(t, sent.Message.Sender)
	assert.Equal(t, "Alice", sent.Message.Sender.DisplayName)

	w := env.do(t, env.bob, http.MethodGet, "/v1/messages?userId="+env.bob.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[httpdto.ListMessagesResponse](t, w).Data
	require.Len(t, page.Messages, 1)
	assert.Equal(t, sent.MessageID, page.Messages[0].ID)
	assert.Equal(t, int64(1), page.TotalCount)
	assert.Equal(t, int64(1), page.UnreadCount)
	require.NotNil(t, page.NextCursor)

	w = env.do(t, env.bob, http.MethodGet, "/v1/messages?last_check="+*page.NextCursor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	again := decode[httpdto.ListMessagesResponse](t, w).Data
	assert.False(t, again.HasNewMessages)
	assert.Empty(t, again.NewMessages)
	assert.Equal(t, *page.NextCursor, *again.NextCursor)
}

func TestListRejectsOtherUserAndBadCursor(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, env.alice, http.MethodGet, "/v1/messages?userId="+env.bob.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.alice, http.MethodGet, "/v1/messages?last_check=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_CURSOR", decode[any](t, w).Code)

	w = env.do(t, env.alice, http.MethodGet, "/v1/messages?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[any](t, w).Code)
}

func TestSendValidationAndPermissions(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, env.alice, http.MethodPost, "/v1/messages", httpdto.SendMessageRequest{
		RecipientID: env.bob.String(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.alice, http.MethodPost, "/v1/messages", httpdto.SendMessageRequest{
		SenderID:    env.bob.String(),
		RecipientID: env.carol.String(),
		Content:     "impersonation",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.carol, http.MethodPost, "/v1/messages", httpdto.SendMessageRequest{
		PartnerID: env.partnerID.String(),
		Content:   "no relationship",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "PERMISSION_DENIED", decode[any](t, w).Code)

	w = env.do(t, env.alice, http.MethodPost, "/v1/messages", httpdto.SendMessageRequest{
		RecipientID: "not-a-uuid",
		Content:     "hi",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExternalSendWithRelationship(t *testing.T) {
	env := newTestEnv(t)

	sent := env.send(t, env.alice, httpdto.SendMessageRequest{
		PartnerID:   env.partnerID.String(),
		RecipientID: env.bob.String(),
		Content:     "Order update",
	})
	assert.Equal(t, "external", sent.Message.Kind)
	require.NotNil(t, sent.Message.Partner)
	assert.Equal(t, "Acme Supply", sent.Message.Partner.DisplayName)
}

func TestMultipartSend(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	payload, err := json.Marshal(httpdto.SendMessageRequest{RecipientID: env.bob.String(), Content: "files inside"})
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("payload", string(payload)))
	part, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token(t, env.alice))
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sent := decode[httpdto.SendMessageResponse](t, w).Data
	require.Len(t, sent.Message.Attachments, 1)
	assert.Equal(t, "notes.txt", sent.Message.Attachments[0].FileName)
	assert.Contains(t, sent.Message.Attachments[0].URL, "https://files.test/files/")

	fileURL, err := url.Parse(sent.Message.Attachments[0].URL)
	require.NoError(t, err)
	w = env.do(t, uuid.Nil, http.MethodGet, fileURL.Path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())

	w = env.do(t, uuid.Nil, http.MethodGet, "/files/missing/key.txt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[any](t, w).Code)
}

func TestReadDeleteAndThread(t *testing.T) {
	env := newTestEnv(t)
	root := env.send(t, env.alice, httpdto.SendMessageRequest{RecipientID: env.bob.String(), Content: "root"})
	reply := env.send(t, env.bob, httpdto.SendMessageRequest{
		RecipientID: env.alice.String(),
		Content:     "reply",
		ReplyToID:   root.MessageID,
	})
	require.NotNil(t, reply.Message.ThreadID)
	assert.Equal(t, root.MessageID, *reply.Message.ThreadID)

	w := env.do(t, env.alice, http.MethodGet, "/v1/messages/threads/"+root.MessageID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decode[httpdto.ThreadResponse](t, w).Data
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, root.MessageID, thread.Messages[0].ID)

	w = env.do(t, env.alice, http.MethodPost, "/v1/messages/"+root.MessageID+"/read", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.bob, http.MethodPost, "/v1/messages/"+root.MessageID+"/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[httpdto.ReadStateResponse](t, w).Data
	assert.True(t, state.Changed)
	assert.True(t, state.IsRead)
	assert.Equal(t, "read", state.Status)

	w = env.do(t, env.bob, http.MethodPost, "/v1/messages/"+root.MessageID+"/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[httpdto.ReadStateResponse](t, w).Data.Changed)

	w = env.do(t, env.alice, http.MethodGet, "/v1/messages/unread-count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[httpdto.UnreadCountResponse](t, w).Data.UnreadCount)

	w = env.do(t, env.alice, http.MethodPost, "/v1/messages/read-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[httpdto.MarkAllReadResponse](t, w).Data.Updated)

	w = env.do(t, env.bob, http.MethodDelete, "/v1/messages/"+root.MessageID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.alice, http.MethodDelete, "/v1/messages/"+root.MessageID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, env.bob, http.MethodGet, "/v1/messages/"+root.MessageID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadAndListAttachments(t *testing.T) {
	env := newTestEnv(t)
	sent := env.send(t, env.alice, httpdto.SendMessageRequest{RecipientID: env.bob.String(), Content: "upload later"})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "invoice 01.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	upload := func(as uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/messages/"+sent.MessageID+"/attachments", bytes.NewReader(body.Bytes()))
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+env.token(t, as))
		w := httptest.NewRecorder()
		env.engine.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, upload(env.bob).Code)

	w := upload(env.alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	att := decode[httpdto.AttachmentResponse](t, w).Data
	assert.Equal(t, "invoice 01.pdf", att.FileName)
	assert.Contains(t, att.FilePath, "_invoice_01.pdf")

	w = env.do(t, env.bob, http.MethodGet, "/v1/messages/"+sent.MessageID+"/attachments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[httpdto.ListAttachmentsResponse](t, w).Data
	require.Len(t, list.Attachments, 1)
	assert.Equal(t, att.ID, list.Attachments[0].ID)
}
