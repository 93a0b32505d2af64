package websocket

import (
	"context"
	"sync"
)

type hubOp int

const (
	opRegister hubOp = iota
	opUnregister
	opSubscribe
	opUnsubscribe
)

// hubRequest is applied by the Run loop. All requests share one queue so a
// client's registration is always applied before its subscriptions.
type hubRequest struct {
	op      hubOp
	client  *Client
	channel string
}

// Hub manages WebSocket client connections and channel subscriptions
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// channels maps channel name to set of clients subscribed to it
	channels map[string]map[*Client]struct{}

	requests chan hubRequest
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
		requests: make(chan hubRequest, 1024),
	}
}

// Run starts the hub's event loop. Remaining clients are closed when ctx
// ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case req := <-h.requests:
			switch req.op {
			case opRegister:
				h.addClient(req.client)
			case opUnregister:
				h.removeClient(req.client)
			case opSubscribe:
				h.subscribeToChannel(req.client, req.channel)
			case opUnsubscribe:
				h.unsubscribeFromChannel(req.client, req.channel)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.requests <- hubRequest{op: opRegister, client: client}
}

func (h *Hub) Unregister(client *Client) {
	h.requests <- hubRequest{op: opUnregister, client: client}
}

func (h *Hub) Subscribe(client *Client, channel string) {
	h.requests <- hubRequest{op: opSubscribe, client: client, channel: channel}
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.requests <- hubRequest{op: opUnsubscribe, client: client, channel: channel}
}

// Broadcast sends payload to every client subscribed to channel. Slow
// clients drop frames rather than blocking the hub.
func (h *Hub) Broadcast(channel string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.channels[channel]
	for c := range clients {
		c.SendMessage(payload)
	}
	return len(clients)
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetChannelSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

// removeClient drops the client and all its subscriptions, then closes its
// send queue. Unknown clients are ignored so a double unregister is safe.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, channel := range client.GetChannels() {
		h.dropSubscriber(channel, client)
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	h.channels = make(map[string]map[*Client]struct{})
}

func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.Subscribe(channel)
}

func (h *Hub) unsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropSubscriber(channel, client)
	client.Unsubscribe(channel)
}

func (h *Hub) dropSubscriber(channel string, client *Client) {
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
}
