package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"messaging-core/config"
	"messaging-core/internal/events"
	"messaging-core/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate map[uuid.UUID]uuid.UUID

func (g fakeGate) IsActive(_ context.Context, userID, partnerID uuid.UUID) bool {
	return g[userID] == partnerID
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub()
	go hub.Run(ctx)
	return hub
}

func TestChannelAuthorizer(t *testing.T) {
	ctx := context.Background()
	alice, acme, other := uuid.New(), uuid.New(), uuid.New()
	a := NewChannelAuthorizer(fakeGate{alice: acme})

	assert.True(t, a.CanSubscribe(ctx, alice, events.UserChannel(alice)))
	assert.False(t, a.CanSubscribe(ctx, alice, events.UserChannel(other)))
	assert.True(t, a.CanSubscribe(ctx, alice, events.PartnerChannel(acme)))
	assert.False(t, a.CanSubscribe(ctx, alice, events.PartnerChannel(other)))
	assert.False(t, a.CanSubscribe(ctx, alice, "channel:partner:not-a-uuid"))
	assert.False(t, a.CanSubscribe(ctx, alice, "channel:system:all"))
	assert.False(t, NewChannelAuthorizer(nil).CanSubscribe(ctx, alice, events.PartnerChannel(acme)))
}

func TestBusBridgeForwardsToSubscribers(t *testing.T) {
	hub := startHub(t)
	bus := events.NewLocalBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewBusBridge(bus, hub, nil).Run(ctx) }()

	user := uuid.New()
	channel := events.UserChannel(user)
	client := &Client{ID: "c1", UserID: user, Send: make(chan []byte, 8), channels: map[string]bool{}}
	hub.Register(client)
	hub.Subscribe(client, channel)
	require.Eventually(t, func() bool { return hub.GetChannelSubscriberCount(channel) == 1 }, time.Second, 5*time.Millisecond)

	var frame ServerFrame
	require.Eventually(t, func() bool {
		_ = bus.Publish(context.Background(), channel, []byte(`{"event_type":"message.created"}`))
		select {
		case raw := <-client.Send:
			return json.Unmarshal(raw, &frame) == nil
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, FrameEvent, frame.Type)
	assert.Equal(t, channel, frame.Channel)
	assert.JSONEq(t, `{"event_type":"message.created"}`, string(frame.Data))

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.GetChannelSubscriberCount(channel))
}

func TestHandlerSubscribesAndAuthorizes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	auth := services.NewAuthService(&config.Config{JWTSecret: "test-secret"})
	alice, acme := uuid.New(), uuid.New()

	router := gin.New()
	router.GET("/v1/ws", NewHandler(auth, hub, NewChannelAuthorizer(fakeGate{alice: acme}), nil).Connect)
	srv := httptest.NewServer(router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)

	token, err := auth.IssueAccessToken(alice, time.Minute)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	own := events.UserChannel(alice)
	require.Eventually(t, func() bool { return hub.GetChannelSubscriberCount(own) == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Broadcast(own, []byte(`{"type":"event","channel":"`+own+`"}`))
	var frame ServerFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameEvent, frame.Type)

	require.NoError(t, conn.WriteJSON(ClientFrame{Action: ActionSubscribe, Channel: events.PartnerChannel(uuid.New())}))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameError, frame.Type)
	assert.Equal(t, "forbidden", frame.Error)

	partnerChannel := events.PartnerChannel(acme)
	require.NoError(t, conn.WriteJSON(ClientFrame{Action: ActionSubscribe, Channel: partnerChannel}))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameSubscribed, frame.Type)
	require.Eventually(t, func() bool { return hub.GetChannelSubscriberCount(partnerChannel) == 1 }, 2*time.Second, 5*time.Millisecond)

	// subscribing twice is acknowledged without a second registration
	require.NoError(t, conn.WriteJSON(ClientFrame{Action: ActionSubscribe, Channel: partnerChannel}))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameSubscribed, frame.Type)
	assert.Equal(t, 1, hub.GetChannelSubscriberCount(partnerChannel))

	require.NoError(t, conn.WriteJSON(ClientFrame{Action: ActionPing}))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FramePong, frame.Type)
}
