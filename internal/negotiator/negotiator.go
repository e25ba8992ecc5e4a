package negotiator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/observability"
	"github.com/danmuck/uwbranging/internal/protocol/envelope"
	"github.com/danmuck/uwbranging/internal/registry"
	"github.com/danmuck/uwbranging/internal/transport"
	"github.com/danmuck/uwbranging/internal/uwb"
)

var (
	ErrUnknownEndpoint = errors.New("negotiator: endpoint not bound")
	ErrAlreadyRunning  = errors.New("negotiator: already running")
	ErrInvalidConfig   = errors.New("negotiator: invalid config")
)

const defaultEventBuffer = 64

type Config struct {
	// Local is this device's identity as sent to peers.
	Local uwb.Endpoint
	// ConfigID is the configuration a controller offers.
	ConfigID int
	// SupportedConfigIDs is what a controlee advertises.
	SupportedConfigIDs []int
	EventBuffer        int
}

func (c Config) withDefaults() Config {
	if c.ConfigID == 0 {
		c.ConfigID = uwb.ConfigIDDefault
	}
	if len(c.SupportedConfigIDs) == 0 {
		c.SupportedConfigIDs = uwb.DefaultSupportedConfigIDs()
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
	return c
}

func (c Config) Validate() error {
	if c.Local.ID == "" {
		return fmt.Errorf("%w: missing local endpoint id", ErrInvalidConfig)
	}
	return nil
}

// Role is the role-specific half of the negotiation. Implementations run on
// the negotiator loop goroutine.
type Role interface {
	Name() string
	Mode() transport.Mode
	connected(ctx context.Context, n *Negotiator, tid string)
	control(ctx context.Context, n *Negotiator, tid string, msg envelope.Control)
}

// Negotiator drives one Role over one PeerTransport. All negotiation state is
// owned by the Run goroutine; SendMessage may be called concurrently.
type Negotiator struct {
	cfg       Config
	role      Role
	transport transport.PeerTransport
	engine    uwb.Engine
	endpoints *registry.Endpoints

	conns   map[string]*conn
	out     chan Event
	msgSeq  atomic.Uint64
	running atomic.Bool
}

func New(role Role, t transport.PeerTransport, engine uwb.Engine, cfg Config) (*Negotiator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t == nil || engine == nil {
		return nil, fmt.Errorf("%w: transport and engine are required", ErrInvalidConfig)
	}
	return &Negotiator{
		cfg:       cfg,
		role:      role,
		transport: t,
		engine:    engine,
		endpoints: registry.NewEndpoints(),
		conns:     make(map[string]*conn),
		out:       make(chan Event, cfg.EventBuffer),
	}, nil
}

func NewController(t transport.PeerTransport, engine uwb.Engine, cfg Config) (*Negotiator, error) {
	return New(controller{}, t, engine, cfg)
}

func NewControlee(t transport.PeerTransport, engine uwb.Engine, cfg Config) (*Negotiator, error) {
	return New(controlee{}, t, engine, cfg)
}

// Events is closed when Run returns.
func (n *Negotiator) Events() <-chan Event {
	return n.out
}

func (n *Negotiator) Role() string {
	return n.role.Name()
}

// Bindings reports the currently bound peers keyed by transport id.
func (n *Negotiator) Bindings() map[string]uwb.Endpoint {
	return n.endpoints.Snapshot()
}

// Run starts the transport and processes its events until ctx is cancelled
// or the transport closes its event stream.
func (n *Negotiator) Run(ctx context.Context) error {
	if !n.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(n.out)

	events, err := n.transport.Start(ctx, n.role.Mode())
	if err != nil {
		return fmt.Errorf("negotiator: start transport: %w", err)
	}
	logging.Infof("negotiator.%s started local=%q mode=%s", n.role.Name(), n.cfg.Local.ID, n.role.Mode())
	defer n.releaseAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			n.handle(ctx, ev)
		}
	}
}

// SendMessage sends msg to endpoint as an OOB data message.
func (n *Negotiator) SendMessage(ctx context.Context, endpoint uwb.Endpoint, msg []byte) error {
	tid, ok := n.endpoints.TransportID(endpoint)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}
	if msg == nil {
		msg = []byte{}
	}
	payload, err := envelope.EncodeData(n.msgSeq.Add(1), envelope.Data{Message: msg})
	if err != nil {
		return err
	}
	if err := n.transport.SendPayload(ctx, tid, payload); err != nil {
		observability.RecordSendFailure(n.role.Name())
		return fmt.Errorf("negotiator: send message to %s: %w", endpoint, err)
	}
	return nil
}

func (n *Negotiator) handle(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.EndpointConnected:
		logging.Debugf("negotiator.%s connected tid=%q", n.role.Name(), ev.TransportID)
		n.role.connected(ctx, n, ev.TransportID)
	case transport.EndpointLost:
		n.lost(ctx, ev.TransportID)
	case transport.PayloadReceived:
		n.payload(ctx, ev.TransportID, ev.Payload)
	default:
		logging.Debugf("negotiator.%s ignored event kind=%d tid=%q", n.role.Name(), ev.Kind, ev.TransportID)
	}
}

func (n *Negotiator) lost(ctx context.Context, tid string) {
	c, tracked := n.conns[tid]
	delete(n.conns, tid)
	if tracked {
		c.release()
	}
	endpoint, bound := n.endpoints.Unbind(tid)
	logging.Debugf("negotiator.%s lost tid=%q bound=%t", n.role.Name(), tid, bound)
	if !bound {
		return
	}
	var attempt AttemptID
	if tracked {
		attempt = c.attempt
	}
	observability.RecordNegotiation(n.role.Name(), observability.OutcomeLost)
	n.emit(ctx, Lost(endpoint, attempt))
}

func (n *Negotiator) payload(ctx context.Context, tid string, payload []byte) {
	env, err := envelope.Decode(payload)
	if err != nil {
		n.drop(tid, observability.DropMalformed, err)
		return
	}
	if env.Control != nil {
		n.role.control(ctx, n, tid, *env.Control)
		return
	}
	endpoint, ok := n.endpoints.Lookup(tid)
	if !ok {
		n.drop(tid, observability.DropUnbound, nil)
		return
	}
	var attempt AttemptID
	if c, ok := n.conns[tid]; ok {
		attempt = c.attempt
	}
	n.emit(ctx, MessageReceived(endpoint, attempt, env.Data.Message))
}

// track returns the conn for tid, starting a fresh attempt if needed.
func (n *Negotiator) track(tid string) *conn {
	if c, ok := n.conns[tid]; ok {
		return c
	}
	c := &conn{state: StateConnected, attempt: newAttemptID()}
	n.conns[tid] = c
	return c
}

func (n *Negotiator) sendControl(ctx context.Context, tid string, msg envelope.Control) {
	payload, err := envelope.EncodeControl(n.msgSeq.Add(1), msg)
	if err != nil {
		logging.Errf("negotiator.%s encode control tid=%q err=%v", n.role.Name(), tid, err)
		return
	}
	if err := n.transport.SendPayload(ctx, tid, payload); err != nil {
		observability.RecordSendFailure(n.role.Name())
		logging.Warnf("negotiator.%s send control tid=%q err=%v", n.role.Name(), tid, err)
	}
}

func (n *Negotiator) drop(tid, reason string, err error) {
	observability.RecordPayloadDropped(n.role.Name(), reason)
	if err != nil {
		logging.Debugf("negotiator.%s drop tid=%q reason=%s err=%v", n.role.Name(), tid, reason, err)
		return
	}
	logging.Debugf("negotiator.%s drop tid=%q reason=%s", n.role.Name(), tid, reason)
}

// emit blocks until the multiplexer accepts ev or ctx ends. A Found that
// cannot be delivered has its handle stopped.
func (n *Negotiator) emit(ctx context.Context, ev Event) bool {
	select {
	case n.out <- ev:
		return true
	case <-ctx.Done():
		if ev.Kind == EventFound && ev.Handle != nil {
			_ = ev.Handle.Stop()
		}
		return false
	}
}

func (n *Negotiator) releaseAll() {
	for tid, c := range n.conns {
		c.release()
		delete(n.conns, tid)
	}
	for _, tid := range n.endpoints.TransportIDs() {
		n.endpoints.Unbind(tid)
	}
	logging.Infof("negotiator.%s stopped local=%q", n.role.Name(), n.cfg.Local.ID)
}
