package multiplexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/negotiator"
	"github.com/danmuck/uwbranging/internal/observability"
	"github.com/danmuck/uwbranging/internal/registry"
	"github.com/danmuck/uwbranging/internal/uwb"
)

var (
	ErrAlreadyRunning = errors.New("multiplexer: already running")
	ErrInvalidConfig  = errors.New("multiplexer: invalid config")
)

const defaultEventBuffer = 64

type Config struct {
	// Local is reported as the endpoint for samples addressed to this device.
	Local       uwb.Endpoint
	EventBuffer int
}

// activeSession is loop-owned.
type activeSession struct {
	endpoint     uwb.Endpoint
	attempt      negotiator.AttemptID
	params       uwb.SessionParameters
	localAddress uwb.Address
	handle       uwb.SessionHandle
	cancel       context.CancelFunc
	gen          uint64
}

// taskReport is sent from a ranging task back to the loop.
type taskReport struct {
	key    string
	gen    uint64
	sample uwb.RangingSample
	err    error
}

type Multiplexer struct {
	cfg       Config
	out       chan uwb.EndpointEvent
	reports   chan taskReport
	addresses *registry.Addresses
	sessions  map[string]*activeSession
	gen       uint64
	running   atomic.Bool

	infoMu sync.RWMutex
	info   map[string]SessionInfo
}

func New(cfg Config) (*Multiplexer, error) {
	if cfg.Local.ID == "" {
		return nil, fmt.Errorf("%w: missing local endpoint id", ErrInvalidConfig)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	return &Multiplexer{
		cfg:       cfg,
		out:       make(chan uwb.EndpointEvent, cfg.EventBuffer),
		reports:   make(chan taskReport, cfg.EventBuffer),
		addresses: registry.NewAddresses(),
		sessions:  make(map[string]*activeSession),
		info:      make(map[string]SessionInfo),
	}, nil
}

// Events is closed when Run returns.
func (m *Multiplexer) Events() <-chan uwb.EndpointEvent {
	return m.out
}

// Run consumes negotiator events until ctx is cancelled or in is closed,
// then cancels every ranging task and closes Events.
func (m *Multiplexer) Run(ctx context.Context, in <-chan negotiator.Event) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(m.out)
	defer m.teardown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			m.handle(ctx, ev)
		case r := <-m.reports:
			m.report(ctx, r)
		}
	}
}

func (m *Multiplexer) handle(ctx context.Context, ev negotiator.Event) {
	switch ev.Kind {
	case negotiator.EventFound:
		m.found(ctx, ev)
	case negotiator.EventLost:
		s, ok := m.sessions[ev.Endpoint.Key()]
		if !ok {
			logging.Debugf("multiplexer lost ignored endpoint=%q reason=no_session", ev.Endpoint)
			return
		}
		if s.attempt != ev.Attempt {
			logging.Debugf("multiplexer lost ignored endpoint=%q reason=stale_attempt attempt=%s live=%s",
				ev.Endpoint, ev.Attempt, s.attempt)
			return
		}
		m.end(s, true)
		m.emit(ctx, uwb.EndpointLost(s.endpoint))
	case negotiator.EventMessage:
		if _, ok := m.sessions[ev.Endpoint.Key()]; !ok {
			logging.Debugf("multiplexer message dropped endpoint=%q reason=no_session", ev.Endpoint)
			return
		}
		m.emit(ctx, uwb.EndpointMessage(ev.Endpoint, ev.Message))
	}
}

func (m *Multiplexer) found(ctx context.Context, ev negotiator.Event) {
	if ev.Handle == nil {
		logging.Errf("multiplexer found without handle endpoint=%q", ev.Endpoint)
		return
	}
	peer := ev.Params.PeerAddress
	local := ev.Handle.LocalAddress()
	if peer == local {
		m.reject(ev, fmt.Errorf("%w: %s", registry.ErrLocalCollision, peer))
		return
	}
	wasLocal := m.addresses.IsLocal(local)
	if err := m.addresses.AddLocal(local); err != nil {
		m.reject(ev, err)
		return
	}
	if err := m.addresses.Put(peer, ev.Endpoint); err != nil {
		if !wasLocal {
			m.addresses.RemoveLocal(local)
		}
		m.reject(ev, err)
		return
	}

	key := ev.Endpoint.Key()
	if old, ok := m.sessions[key]; ok {
		logging.Infof("multiplexer replacing session endpoint=%q old_attempt=%s new_attempt=%s",
			ev.Endpoint, old.attempt, ev.Attempt)
		m.end(old, old.params.PeerAddress != peer)
		if old.localAddress == local {
			// end released it; local is not remote, so this cannot fail.
			_ = m.addresses.AddLocal(local)
		}
	}

	m.gen++
	taskCtx, cancel := context.WithCancel(ctx)
	s := &activeSession{
		endpoint:     ev.Endpoint,
		attempt:      ev.Attempt,
		params:       ev.Params.Clone(),
		localAddress: local,
		handle:       ev.Handle,
		cancel:       cancel,
		gen:          m.gen,
	}
	m.sessions[key] = s
	m.setInfo(SessionInfo{
		Endpoint:     ev.Endpoint.ID,
		Attempt:      string(ev.Attempt),
		SessionID:    ev.Params.SessionID,
		PeerAddress:  peer.String(),
		LocalAddress: local.String(),
		StartedAt:    time.Now(),
	})
	observability.RecordSessionStarted()

	m.emit(ctx, uwb.EndpointFound(ev.Endpoint))
	go m.rangingTask(taskCtx, key, s.gen, s.handle, s.params.Clone())
}

func (m *Multiplexer) reject(ev negotiator.Event, err error) {
	observability.RecordAddressCollision()
	logging.Errf("multiplexer found rejected endpoint=%q peer_addr=%s err=%v",
		ev.Endpoint, ev.Params.PeerAddress, err)
	_ = ev.Handle.Stop()
}

// rangingTask runs on its own goroutine and only talks to the loop through
// reports.
func (m *Multiplexer) rangingTask(ctx context.Context, key string, gen uint64, h uwb.SessionHandle, params uwb.SessionParameters) {
	samples, err := h.StartRanging(ctx, params)
	if err != nil {
		m.send(ctx, taskReport{key: key, gen: gen, err: err})
		return
	}
	for sample := range samples {
		if !m.send(ctx, taskReport{key: key, gen: gen, sample: sample}) {
			return
		}
	}
}

func (m *Multiplexer) send(ctx context.Context, r taskReport) bool {
	select {
	case m.reports <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Multiplexer) report(ctx context.Context, r taskReport) {
	s, ok := m.sessions[r.key]
	if !ok || s.gen != r.gen {
		return
	}
	if r.err != nil {
		observability.RecordRangingStartFailure()
		logging.Warnf("multiplexer ranging start failed endpoint=%q err=%v", s.endpoint, r.err)
		m.end(s, true)
		m.emit(ctx, uwb.EndpointLost(s.endpoint))
		return
	}

	endpoint, ok := m.addresses.Resolve(r.sample.Address, m.cfg.Local)
	if !ok {
		logging.Debugf("multiplexer sample dropped addr=%s reason=unknown_address", r.sample.Address)
		return
	}
	observability.RecordRangingSample(r.sample.Kind.String())
	switch r.sample.Kind {
	case uwb.SamplePosition:
		m.updateInfo(s.endpoint.Key(), func(i *SessionInfo) { i.observe(r.sample.Position, time.Now()) })
		m.emit(ctx, uwb.PositionUpdated(endpoint, r.sample.Position))
	case uwb.SamplePeerDisconnected:
		m.emit(ctx, uwb.UwbDisconnected(endpoint))
	}
}

// end cancels the task without waiting for it and releases the handle.
func (m *Multiplexer) end(s *activeSession, releaseAddress bool) {
	s.cancel()
	if err := s.handle.Stop(); err != nil {
		logging.Warnf("multiplexer handle stop endpoint=%q err=%v", s.endpoint, err)
	}
	if releaseAddress {
		m.addresses.Remove(s.params.PeerAddress)
	}
	m.addresses.RemoveLocal(s.localAddress)
	delete(m.sessions, s.endpoint.Key())
	m.dropInfo(s.endpoint.Key())
	observability.RecordSessionEnded()
}

func (m *Multiplexer) emit(ctx context.Context, ev uwb.EndpointEvent) {
	select {
	case m.out <- ev:
	case <-ctx.Done():
	}
}

func (m *Multiplexer) teardown() {
	for _, s := range m.sessions {
		s.cancel()
		_ = s.handle.Stop()
		observability.RecordSessionEnded()
	}
	clear(m.sessions)
	m.addresses.Reset()
	m.clearInfo()
	logging.Debugf("multiplexer teardown complete local=%q", m.cfg.Local)
}
