// Package mem is an in-process PeerTransport. Discovering nodes pair with
// every advertising node on the same Hub.
package mem

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/transport"
	"github.com/google/uuid"
)

var ErrHubClosed = errors.New("mem: node stopped")

// Hub links nodes. The zero value is not usable; call NewHub.
type Hub struct {
	mu    sync.Mutex
	nodes map[string]*Node
}

func NewHub() *Hub {
	return &Hub{nodes: make(map[string]*Node)}
}

// NewNode returns a transport attached to the hub. It does not pair until
// Start is called.
func (h *Hub) NewNode(name string) *Node {
	n := &Node{
		hub:   h,
		id:    uuid.NewString(),
		name:  name,
		links: make(map[string]*link),
	}
	h.mu.Lock()
	h.nodes[n.id] = n
	h.mu.Unlock()
	return n
}

// Disconnect drops the link between two nodes. Both sides observe
// EndpointLost. It reports whether a link existed.
func (h *Hub) Disconnect(a, b *Node) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for tid, l := range a.links {
		if l.peer == b {
			h.unlinkLocked(a, tid)
			return true
		}
	}
	return false
}

type link struct {
	peer    *Node
	peerTID string
}

// Node is one PeerTransport on a Hub.
type Node struct {
	hub  *Hub
	id   string
	name string

	// guarded by hub.mu
	mode    transport.Mode
	started bool
	stopped bool
	box     *mailbox
	links   map[string]*link
}

var _ transport.PeerTransport = (*Node)(nil)

func (n *Node) ID() string   { return n.id }
func (n *Node) Name() string { return n.name }

// Peers returns the transport ids this node currently sees.
func (n *Node) Peers() []string {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	out := make([]string, 0, len(n.links))
	for tid := range n.links {
		out = append(out, tid)
	}
	return out
}

func (n *Node) Start(ctx context.Context, mode transport.Mode) (<-chan transport.Event, error) {
	h := n.hub
	h.mu.Lock()
	if n.started {
		h.mu.Unlock()
		return nil, transport.ErrAlreadyStarted
	}
	n.started = true
	n.mode = mode
	n.box = newMailbox()
	for _, other := range h.nodes {
		if other == n || !other.started || other.stopped || !mode.Opposite(other.mode) {
			continue
		}
		h.linkLocked(n, other)
	}
	box := n.box
	h.mu.Unlock()

	logging.Debugf("mem: node=%s name=%s started mode=%s", n.id, n.name, mode)
	go box.run(ctx)
	go func() {
		<-ctx.Done()
		h.stop(n)
	}()
	return box.out, nil
}

func (n *Node) SendPayload(ctx context.Context, tid string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := n.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if !n.started {
		return transport.ErrNotStarted
	}
	if n.stopped {
		return ErrHubClosed
	}
	l, ok := n.links[tid]
	if !ok {
		return transport.ErrUnknownTransportID
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	l.peer.box.push(transport.Event{
		Kind:        transport.PayloadReceived,
		TransportID: l.peerTID,
		Payload:     buf,
	})
	return nil
}

func (h *Hub) linkLocked(a, b *Node) {
	aTID := uuid.NewString()
	bTID := uuid.NewString()
	a.links[aTID] = &link{peer: b, peerTID: bTID}
	b.links[bTID] = &link{peer: a, peerTID: aTID}
	a.box.push(transport.Event{Kind: transport.EndpointConnected, TransportID: aTID})
	b.box.push(transport.Event{Kind: transport.EndpointConnected, TransportID: bTID})
}

func (h *Hub) unlinkLocked(n *Node, tid string) {
	l, ok := n.links[tid]
	if !ok {
		return
	}
	delete(n.links, tid)
	delete(l.peer.links, l.peerTID)
	n.box.push(transport.Event{Kind: transport.EndpointLost, TransportID: tid})
	l.peer.box.push(transport.Event{Kind: transport.EndpointLost, TransportID: l.peerTID})
}

func (h *Hub) stop(n *Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for tid := range n.links {
		h.unlinkLocked(n, tid)
	}
	n.stopped = true
	delete(h.nodes, n.id)
	logging.Debugf("mem: node=%s name=%s stopped", n.id, n.name)
}

// mailbox decouples producers holding hub.mu from a slow consumer.
type mailbox struct {
	mu     sync.Mutex
	queue  []transport.Event
	notify chan struct{}
	out    chan transport.Event
}

func newMailbox() *mailbox {
	return &mailbox{
		notify: make(chan struct{}, 1),
		out:    make(chan transport.Event),
	}
}

func (m *mailbox) push(ev transport.Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) run(ctx context.Context) {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.notify:
				continue
			case <-ctx.Done():
				return
			}
		}
		ev := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		select {
		case m.out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
