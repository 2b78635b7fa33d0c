package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat. PongWait bounds how long a
	// silently dead connection stays in presence.
	PingInterval = 30
	PongWait     = 60
)

// Channel protocol events, alongside the broadcast events in models.
const (
	EventSubscribed   = "subscribed"
	EventPresenceSync = "presence_sync"
	EventTrack        = "track"
	EventUntrack      = "untrack"
	EventError        = "error"
)

// Member is one presence entry on a topic.
type Member struct {
	Key      string            `json:"key"`
	ViewerID string            `json:"viewer_id"`
	Kind     models.ViewerKind `json:"kind"`
	Name     string            `json:"name"`
	JoinedAt time.Time         `json:"joined_at"`
}

// PresenceSync is the payload of presence_sync: the full membership snapshot.
type PresenceSync struct {
	Members []Member `json:"members"`
	Count   int      `json:"count"`
}

// Subscribed is the payload of subscribed, sent once per connection.
type Subscribed struct {
	ClientID string `json:"client_id"`
	Topic    string `json:"topic"`
}

// RelayPublisher publishes topic events to every server instance (Redis pub/sub).
type RelayPublisher interface {
	PublishTopicEvent(ctx context.Context, topic, event string, payload []byte) error
}

// RelaySubscriber subscribes to a topic on the relay and invokes handler for incoming events.
type RelaySubscriber interface {
	SubscribeTopic(topic string, handler func(event string, payload []byte)) (cancel func(), err error)
}

type room struct {
	clients map[string]*Client
	members map[string]Member
}

// Hub maintains topic -> connections and presence, and fans broadcasts out to them.
// With a relay, publishes go through Redis and the hub's relay subscription fans out
// locally once, so every instance delivers the event exactly once to its clients.
type Hub struct {
	rooms    map[string]*room
	subs     map[string]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	relay    RelayPublisher
	relaySub RelaySubscriber
	now      func() time.Time
}

// NewHub creates a new hub. relayPub and relaySub may be nil for a single process.
func NewHub(logger *zap.Logger, relayPub RelayPublisher, relaySub RelaySubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[string]*room),
		subs:     make(map[string]func()),
		logger:   logger,
		relay:    relayPub,
		relaySub: relaySub,
		now:      time.Now,
	}
}

// Register adds a client to its topic, starting a relay subscription for the first
// client, then sends it the subscribed ack and the current presence snapshot.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	r := h.rooms[c.Topic]
	created := r == nil
	if created {
		r = &room{clients: make(map[string]*Client), members: make(map[string]Member)}
		h.rooms[c.Topic] = r
	}
	r.clients[c.ID] = c
	presence := snapshot(r)
	h.mu.Unlock()

	if created && h.relaySub != nil {
		h.subscribeRelay(c.Topic, r)
	}

	c.enqueue(EventSubscribed, Subscribed{ClientID: c.ID, Topic: c.Topic})
	c.enqueue(EventPresenceSync, presence)
	h.logger.Debug("client subscribed", zap.String("client_id", c.ID), zap.String("topic", c.Topic))
}

// subscribeRelay opens the relay subscription for a new room without holding the hub
// lock. If the room was emptied meanwhile, the subscription is dropped again.
func (h *Hub) subscribeRelay(topic string, r *room) {
	cancel, err := h.relaySub.SubscribeTopic(topic, func(event string, payload []byte) {
		h.Broadcast(topic, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("relay subscribe failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	h.mu.Lock()
	_, taken := h.subs[topic]
	keep := h.rooms[topic] == r && !taken
	if keep {
		h.subs[topic] = cancel
	}
	h.mu.Unlock()
	if !keep {
		cancel()
	}
}

// Unregister removes a client and its presence entry. Cancels the relay subscription
// when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	r, ok := h.rooms[c.Topic]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(r.clients, c.ID)
	_, wasTracked := r.members[c.ID]
	delete(r.members, c.ID)
	if len(r.clients) == 0 {
		delete(h.rooms, c.Topic)
		if cancel, ok := h.subs[c.Topic]; ok {
			cancel()
			delete(h.subs, c.Topic)
		}
	}
	h.mu.Unlock()

	if wasTracked {
		h.syncPresence(c.Topic)
	}
	h.logger.Debug("client unsubscribed", zap.String("client_id", c.ID), zap.String("topic", c.Topic))
}

// Track adds the client's viewer to the topic's presence set. The identity comes
// from the authenticated connection, never from the client payload.
func (h *Hub) Track(c *Client) {
	h.mu.Lock()
	r, ok := h.rooms[c.Topic]
	if !ok || r.clients[c.ID] == nil {
		h.mu.Unlock()
		return
	}
	if _, tracked := r.members[c.ID]; !tracked {
		r.members[c.ID] = Member{
			Key:      c.ID,
			ViewerID: c.Viewer.ID,
			Kind:     c.Viewer.Kind,
			Name:     c.Viewer.Name,
			JoinedAt: h.now(),
		}
	}
	h.mu.Unlock()
	h.syncPresence(c.Topic)
}

// Untrack removes the client's presence entry while keeping its subscription.
func (h *Hub) Untrack(c *Client) {
	h.mu.Lock()
	r, ok := h.rooms[c.Topic]
	if !ok {
		h.mu.Unlock()
		return
	}
	_, tracked := r.members[c.ID]
	delete(r.members, c.ID)
	h.mu.Unlock()
	if tracked {
		h.syncPresence(c.Topic)
	}
}

func (h *Hub) syncPresence(topic string) {
	h.mu.RLock()
	r, ok := h.rooms[topic]
	if !ok {
		h.mu.RUnlock()
		return
	}
	presence := snapshot(r)
	h.mu.RUnlock()
	h.Broadcast(topic, EventPresenceSync, presence)
}

// snapshot must be called with h.mu held.
func snapshot(r *room) PresenceSync {
	members := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].Key < members[j].Key
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return PresenceSync{Members: members, Count: len(members)}
}

// Members returns the presence set of a topic ordered by join time.
func (h *Hub) Members(topic string) []Member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[topic]
	if !ok {
		return []Member{}
	}
	return snapshot(r).Members
}

// Count returns the number of presence entries on a topic.
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[topic]; ok {
		return len(r.members)
	}
	return 0
}

// Attached reports whether viewerID currently has a presence entry on topic.
func (h *Hub) Attached(topic, viewerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[topic]
	if !ok {
		return false
	}
	for _, m := range r.members {
		if m.ViewerID == viewerID {
			return true
		}
	}
	return false
}

// Broadcast sends an event to all local clients on a topic. A client whose buffer
// is full misses the event.
func (h *Hub) Broadcast(topic, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("broadcast encode failed", zap.String("topic", topic), zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	r, ok := h.rooms[topic]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, event dropped", zap.String("client_id", c.ID), zap.String("event", event))
		}
	}
}

// Publish delivers an event to every subscriber of topic: through the relay when one is
// configured, otherwise to local clients. It reports only whether the send was accepted.
func (h *Hub) Publish(ctx context.Context, topic, event string, payload interface{}) error {
	if h.relay == nil {
		h.Broadcast(topic, event, payload)
		return nil
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}
	if err := h.relay.PublishTopicEvent(ctx, topic, event, data); err != nil {
		return fmt.Errorf("relay publish %s on %s: %w", event, topic, err)
	}
	return nil
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
