// Package sim is a software ranging engine. Each session walks a simulated
// peer around the local device and reports positions on a fixed interval.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/uwb"
)

var (
	ErrStopped        = errors.New("sim: session stopped")
	ErrAlreadyRanging = errors.New("sim: session already ranging")
	ErrInvalidParams  = errors.New("sim: invalid session parameters")
	ErrNoAddresses    = errors.New("sim: address space exhausted")
)

type Config struct {
	Interval      time.Duration
	Channel       int
	PreambleIndex int
	// Seed makes address allocation and walks reproducible. Zero seeds from
	// the clock.
	Seed uint64
	// StartDistance and Step are in meters.
	StartDistance float64
	Step          float64
	// DisconnectAfter ends each session with a peer-disconnected sample
	// after that many positions. Zero ranges until cancelled.
	DisconnectAfter int
}

func DefaultConfig() Config {
	return Config{
		Interval:      200 * time.Millisecond,
		Channel:       9,
		PreambleIndex: 11,
		StartDistance: 2.0,
		Step:          0.15,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Channel == 0 {
		c.Channel = d.Channel
	}
	if c.PreambleIndex == 0 {
		c.PreambleIndex = d.PreambleIndex
	}
	if c.StartDistance <= 0 {
		c.StartDistance = d.StartDistance
	}
	if c.Step <= 0 {
		c.Step = d.Step
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return c
}

// Engine allocates unique short addresses across all of its sessions.
type Engine struct {
	cfg Config

	mu   sync.Mutex
	rng  *rand.Rand
	used map[uwb.Address]struct{}
}

var _ uwb.Engine = (*Engine)(nil)

func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		used: make(map[uwb.Address]struct{}),
	}
}

func (e *Engine) NewControllerSession(ctx context.Context, configID int) (uwb.SessionHandle, error) {
	if !slices.Contains(uwb.DefaultSupportedConfigIDs(), configID) {
		return nil, fmt.Errorf("%w: unsupported config id %d", ErrInvalidParams, configID)
	}
	return e.newSession(ctx, "controller")
}

func (e *Engine) NewControleeSession(ctx context.Context) (uwb.SessionHandle, error) {
	return e.newSession(ctx, "controlee")
}

func (e *Engine) newSession(ctx context.Context, role string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	addr, err := e.allocateLocked()
	if err != nil {
		return nil, err
	}
	s := &Session{
		engine: e,
		role:   role,
		addr:   addr,
		rng:    rand.New(rand.NewPCG(e.rng.Uint64(), e.rng.Uint64())),
	}
	logging.Debugf("sim.Engine session created role=%s addr=%s", role, addr)
	return s, nil
}

func (e *Engine) allocateLocked() (uwb.Address, error) {
	if len(e.used) >= math.MaxUint16 {
		return "", ErrNoAddresses
	}
	for {
		v := uint16(e.rng.UintN(math.MaxUint16) + 1)
		addr := uwb.AddressFromBytes([]byte{byte(v >> 8), byte(v)})
		if _, taken := e.used[addr]; taken {
			continue
		}
		e.used[addr] = struct{}{}
		return addr, nil
	}
}

func (e *Engine) release(addr uwb.Address) {
	e.mu.Lock()
	delete(e.used, addr)
	e.mu.Unlock()
}

// Session is one simulated ranging session.
type Session struct {
	engine  *Engine
	role    string
	addr    uwb.Address
	rng     *rand.Rand
	ranging atomic.Bool
	stopped atomic.Bool
}

var _ uwb.SessionHandle = (*Session)(nil)

func (s *Session) LocalAddress() uwb.Address { return s.addr }

func (s *Session) ComplexChannel() uwb.ComplexChannel {
	return uwb.ComplexChannel{Channel: s.engine.cfg.Channel, PreambleIndex: s.engine.cfg.PreambleIndex}
}

func (s *Session) Capabilities() uwb.Capabilities {
	return uwb.Capabilities{
		SupportedConfigIDs: uwb.DefaultSupportedConfigIDs(),
		SupportsAzimuth:    true,
		SupportsElevation:  true,
	}
}

func (s *Session) StartRanging(ctx context.Context, params uwb.SessionParameters) (<-chan uwb.RangingSample, error) {
	if s.stopped.Load() {
		return nil, ErrStopped
	}
	if params.PeerAddress.IsZero() || len(params.SessionKeyInfo) == 0 {
		return nil, fmt.Errorf("%w: peer address and session key required", ErrInvalidParams)
	}
	if !s.ranging.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRanging
	}
	out := make(chan uwb.RangingSample)
	go s.walk(ctx, params.PeerAddress, out)
	logging.Debugf("sim.Session ranging role=%s addr=%s peer=%s session_id=%d",
		s.role, s.addr, params.PeerAddress, params.SessionID)
	return out, nil
}

func (s *Session) walk(ctx context.Context, peer uwb.Address, out chan<- uwb.RangingSample) {
	defer close(out)
	cfg := s.engine.cfg
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	started := time.Now()
	distance := cfg.StartDistance
	azimuth := s.rng.Float64()*120 - 60
	elevation := s.rng.Float64()*60 - 30
	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.stopped.Load() {
			return
		}
		if cfg.DisconnectAfter > 0 && n >= cfg.DisconnectAfter {
			select {
			case out <- uwb.RangingSample{Address: peer, Kind: uwb.SamplePeerDisconnected}:
			case <-ctx.Done():
			}
			return
		}
		distance = math.Max(0.1, distance+(s.rng.Float64()*2-1)*cfg.Step)
		azimuth = clamp(azimuth+(s.rng.Float64()*2-1)*5, -90, 90)
		elevation = clamp(elevation+(s.rng.Float64()*2-1)*3, -90, 90)
		sample := uwb.RangingSample{
			Address: peer,
			Kind:    uwb.SamplePosition,
			Position: uwb.Position{
				Distance:  &uwb.Measurement{Value: distance},
				Azimuth:   &uwb.Measurement{Value: azimuth},
				Elevation: &uwb.Measurement{Value: elevation},
				Elapsed:   time.Since(started),
			},
		}
		select {
		case out <- sample:
		case <-ctx.Done():
			return
		}
	}
}

// Stop releases the session address. Later calls are no-ops.
func (s *Session) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	s.engine.release(s.addr)
	logging.Debugf("sim.Session stopped role=%s addr=%s", s.role, s.addr)
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
