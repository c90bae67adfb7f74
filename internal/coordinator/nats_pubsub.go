package coordinator

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var propagator = propagation.TraceContext{}

// NatsPubSub backs the coordinator's announce/heartbeat/complete protocol
// with a real NATS connection, carrying trace context over message headers
// the way libs/go/core/natsctx does for the rest of the fleet.
type NatsPubSub struct {
	conn        *nats.Conn
	localPeer   string
	peers       *peerSet
}

// NewNatsPubSub wraps an established NATS connection, identifying the local
// node as localPeer on the wire.
func NewNatsPubSub(conn *nats.Conn, localPeer string) *NatsPubSub {
	return &NatsPubSub{conn: conn, localPeer: localPeer, peers: newPeerSet()}
}

func (n *NatsPubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	hdr := nats.Header{}
	hdr.Set("x-peer-id", n.localPeer)
	carrier := propagation.HeaderCarrier(hdr)
	propagator.Inject(ctx, carrier)
	return n.conn.PublishMsg(&nats.Msg{Subject: topic, Data: payload, Header: hdr})
}

func (n *NatsPubSub) Subscribe(ctx context.Context, topic string, handler Handler) error {
	_, err := n.conn.Subscribe(topic, func(m *nats.Msg) {
		sender := m.Header.Get("x-peer-id")
		if sender != "" && sender != n.localPeer {
			n.peers.add(sender)
		}
		carrier := propagation.HeaderCarrier(m.Header)
		msgCtx := propagator.Extract(context.Background(), carrier)
		tr := otel.Tracer("gotcore/coordinator")
		msgCtx, span := tr.Start(msgCtx, "nats.consume", trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()
		handler(msgCtx, sender, m.Data)
	})
	return err
}

func (n *NatsPubSub) Peers() []string        { return n.peers.list() }
func (n *NatsPubSub) LocalPeerID() string    { return n.localPeer }

var _ PubSub = (*NatsPubSub)(nil)
