// Package scope wires one negotiator to one multiplexer and exposes the pair
// as a single session scope for a controller or controlee device.
package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/uwbranging/internal/config"
	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/multiplexer"
	"github.com/danmuck/uwbranging/internal/negotiator"
	"github.com/danmuck/uwbranging/internal/transport"
	"github.com/danmuck/uwbranging/internal/uwb"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyRunning = errors.New("scope: already running")
	ErrClosed         = errors.New("scope: already finished")
)

type Scope struct {
	local uwb.Endpoint
	neg   *negotiator.Negotiator
	mux   *multiplexer.Multiplexer

	mu      sync.Mutex
	running bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

func NewController(cfg config.Config, t transport.PeerTransport, engine uwb.Engine, local uwb.Endpoint, configID int) (*Scope, error) {
	ncfg := cfg.NegotiatorConfig(local)
	ncfg.ConfigID = configID
	n, err := negotiator.NewController(t, engine, ncfg)
	if err != nil {
		return nil, err
	}
	return newScope(cfg, local, n)
}

func NewControlee(cfg config.Config, t transport.PeerTransport, engine uwb.Engine, local uwb.Endpoint) (*Scope, error) {
	n, err := negotiator.NewControlee(t, engine, cfg.NegotiatorConfig(local))
	if err != nil {
		return nil, err
	}
	return newScope(cfg, local, n)
}

func newScope(cfg config.Config, local uwb.Endpoint, n *negotiator.Negotiator) (*Scope, error) {
	m, err := multiplexer.New(multiplexer.Config{Local: local, EventBuffer: cfg.Pipeline.EventBuffer})
	if err != nil {
		return nil, err
	}
	return &Scope{local: local, neg: n, mux: m, done: make(chan struct{})}, nil
}

// Prepare starts discovery or advertising and returns the endpoint event
// stream. The stream closes once the scope stops.
func (s *Scope) Prepare(ctx context.Context) (<-chan uwb.EndpointEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, ErrAlreadyRunning
	}
	if s.started {
		return nil, ErrClosed
	}
	s.running = true
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.neg.Run(gctx) })
	g.Go(func() error { return s.mux.Run(gctx, s.neg.Events()) })
	go func() {
		err := g.Wait()
		cancel()
		s.mu.Lock()
		s.running = false
		s.err = err
		s.mu.Unlock()
		close(s.done)
		if err != nil {
			logging.Warnf("scope.%s stopped local=%q err=%v", s.neg.Role(), s.local, err)
			return
		}
		logging.Infof("scope.%s stopped local=%q", s.neg.Role(), s.local)
	}()
	logging.Infof("scope.%s prepared local=%q", s.neg.Role(), s.local)
	return s.mux.Events(), nil
}

// Stop cancels the scope without waiting. Use Wait to observe completion.
func (s *Scope) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until a prepared scope has fully stopped.
func (s *Scope) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Scope) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scope) SendMessage(ctx context.Context, endpoint uwb.Endpoint, msg []byte) error {
	if !s.Running() {
		return fmt.Errorf("scope: send to %s: not running", endpoint)
	}
	return s.neg.SendMessage(ctx, endpoint, msg)
}

func (s *Scope) Local() uwb.Endpoint { return s.local }
func (s *Scope) Role() string        { return s.neg.Role() }

func (s *Scope) Sessions() []multiplexer.SessionInfo {
	return s.mux.Sessions()
}

func (s *Scope) Session(endpointID string) (multiplexer.SessionInfo, bool) {
	return s.mux.Session(endpointID)
}

// BoundPeers counts peers whose negotiation reached a binding.
func (s *Scope) BoundPeers() int {
	return len(s.neg.Bindings())
}
