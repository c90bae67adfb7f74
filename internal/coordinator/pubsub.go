package coordinator

import "context"

// Handler processes a message received on a topic, given the sending peer.
type Handler func(ctx context.Context, senderPeerID string, payload []byte)

// PubSub is the external broadcast interface spec.md §4.6/§6 describes. The
// coordinator never talks to a transport directly; MemoryPubSub backs
// single-process tests, NatsPubSub backs a real deployment.
type PubSub interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Peers() []string
	LocalPeerID() string
}

const (
	TopicAnnounce = "tasks/announce"
	TopicHeartbeat = "tasks/heartbeat"
	TopicComplete  = "tasks/complete"
)
