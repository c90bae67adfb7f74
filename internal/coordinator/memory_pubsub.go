package coordinator

import (
	"context"
	"sync"
)

// MemoryHub is a shared in-process bus: every MemoryPubSub Join'd to it sees
// every other member's publishes and peer id, the single-process stand-in
// for the transport + peer-discovery layer the core deliberately does not
// implement.
type MemoryHub struct {
	mu          sync.RWMutex
	peers       map[string]struct{}
	subscribers map[string]map[string][]Handler // topic -> peerID -> handlers
}

// NewMemoryHub constructs an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		peers:       make(map[string]struct{}),
		subscribers: make(map[string]map[string][]Handler),
	}
}

// Join registers peerID with the hub and returns its PubSub handle.
func (h *MemoryHub) Join(peerID string) *MemoryPubSub {
	h.mu.Lock()
	h.peers[peerID] = struct{}{}
	h.mu.Unlock()
	return &MemoryPubSub{hub: h, localPeer: peerID}
}

// MemoryPubSub is one member's view of a MemoryHub.
type MemoryPubSub struct {
	hub       *MemoryHub
	localPeer string
}

func (m *MemoryPubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	m.hub.mu.RLock()
	byPeer := m.hub.subscribers[topic]
	var handlers []Handler
	for peerID, hs := range byPeer {
		if peerID == m.localPeer {
			continue
		}
		handlers = append(handlers, hs...)
	}
	m.hub.mu.RUnlock()
	for _, h := range handlers {
		go h(ctx, m.localPeer, payload)
	}
	return nil
}

func (m *MemoryPubSub) Subscribe(ctx context.Context, topic string, handler Handler) error {
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	if m.hub.subscribers[topic] == nil {
		m.hub.subscribers[topic] = make(map[string][]Handler)
	}
	m.hub.subscribers[topic][m.localPeer] = append(m.hub.subscribers[topic][m.localPeer], handler)
	return nil
}

func (m *MemoryPubSub) Peers() []string {
	m.hub.mu.RLock()
	defer m.hub.mu.RUnlock()
	out := make([]string, 0, len(m.hub.peers))
	for p := range m.hub.peers {
		if p != m.localPeer {
			out = append(out, p)
		}
	}
	return out
}

func (m *MemoryPubSub) LocalPeerID() string { return m.localPeer }

var _ PubSub = (*MemoryPubSub)(nil)
