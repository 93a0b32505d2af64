package events

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBusPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	bus := NewRedisBus(newTestRedis(t), nil)
	defer bus.Close()

	sub, err := bus.Subscribe(ctx, ChannelPattern)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "channel:user:abc", []byte(`{"ok":true}`)))

	msg := receive(t, sub)
	assert.Equal(t, "channel:user:abc", msg.Topic)
	assert.JSONEq(t, `{"ok":true}`, string(msg.Payload))

	require.NoError(t, sub.Close())
	for range sub.Channel() {
	}
}

func TestRedisBusPublishFailsWhenClosed(t *testing.T) {
	client := newTestRedis(t)
	bus := NewRedisBus(client, nil)
	require.NoError(t, client.Close())

	assert.Error(t, bus.Publish(context.Background(), "channel:user:x", []byte("x")))
}
