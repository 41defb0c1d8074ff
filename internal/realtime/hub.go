// Package realtime is the in-process publish/subscribe layer: a Hub mapping
// topics to connected sessions, and one Session per websocket client.
//
// The Hub is an owned instance created at server start and closed at
// shutdown. Delivery is best-effort: publishing never blocks on a slow
// receiver, and a session that cannot keep up is dropped so it cannot stall
// the others. There is no persistence or replay; a session not subscribed at
// publish time never sees the event.
package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// CommandHandler receives client commands the session does not handle
// itself (room joins, leaves and pings are internal). Wired up once at
// startup, after the domain services that depend on the Hub exist.
type CommandHandler interface {
	HandleCommand(s *Session, command string, data json.RawMessage)
}

type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*Session]bool
	sessions map[*Session]map[string]bool
	closed   bool

	commands CommandHandler
}

func NewHub() *Hub {
	return &Hub{
		topics:   make(map[string]map[*Session]bool),
		sessions: make(map[*Session]map[string]bool),
	}
}

// SetCommandHandler installs the dispatcher for domain commands. Must be
// called before the first connection is accepted.
func (h *Hub) SetCommandHandler(handler CommandHandler) {
	h.commands = handler
}

// Join subscribes the session to a topic. Authorization is the caller's
// responsibility; the session checks project access before calling this.
func (h *Hub) Join(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Session]bool)
	}
	h.topics[topic][s] = true

	if h.sessions[s] == nil {
		h.sessions[s] = make(map[string]bool)
	}
	h.sessions[s][topic] = true
}

// Leave unsubscribes the session from a topic.
func (h *Hub) Leave(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromTopic(s, topic)

	if topics, exists := h.sessions[s]; exists {
		delete(topics, topic)
	}
}

// Unregister releases every subscription held by the session. Called once
// on disconnect.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range h.sessions[s] {
		h.removeFromTopic(s, topic)
	}

	delete(h.sessions, s)
}

// removeFromTopic must be called with the lock held.
func (h *Hub) removeFromTopic(s *Session, topic string) {
	if subscribers, exists := h.topics[topic]; exists {
		delete(subscribers, s)

		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}

// TopicsOf returns the topics the session is currently subscribed to.
func (h *Hub) TopicsOf(s *Session) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	topics := make([]string, 0, len(h.sessions[s]))
	for topic := range h.sessions[s] {
		topics = append(topics, topic)
	}

	return topics
}

// Subscribers returns the sessions currently subscribed to a topic.
func (h *Hub) Subscribers(topic string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribers := make([]*Session, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		subscribers = append(subscribers, s)
	}

	return subscribers
}

// Publish delivers the event to every session subscribed to the topic. The
// payload is marshalled once; each delivery is a non-blocking enqueue onto
// the session's outbound buffer, so one unresponsive client never delays
// the rest. A session whose buffer is full is dropped.
func (h *Hub) Publish(topic string, event Event) {
	payload, err := json.Marshal(event)

	if err != nil {
		log.Printf("Failed to marshal %s event for topic %s: %v", event.Type, topic, err)
		return
	}

	for _, s := range h.Subscribers(topic) {
		if !s.enqueue(payload) {
			log.Printf("Dropping unresponsive subscriber of topic %s", topic)
			s.Close()
		}
	}
}

// Close tears the hub down, disconnecting every session. Publishing and
// joining after Close are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
