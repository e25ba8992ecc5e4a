// Package uwbtest provides a scriptable ranging engine for pipeline tests.
package uwbtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/uwbranging/internal/uwb"
)

var ErrEngine = errors.New("uwbtest: engine failure")

// Handle is a session handle whose samples are pushed by the test.
type Handle struct {
	Addr    uwb.Address
	Channel uwb.ComplexChannel
	Caps    uwb.Capabilities

	startErr error
	samples  chan uwb.RangingSample
	started  chan uwb.SessionParameters
	done     chan struct{}
	stops    atomic.Int32
	once     sync.Once
}

func NewHandle(addr []byte) *Handle {
	return &Handle{
		Addr:    uwb.AddressFromBytes(addr),
		Channel: uwb.ComplexChannel{Channel: 9, PreambleIndex: 11},
		Caps: uwb.Capabilities{
			SupportedConfigIDs: []int{uwb.ConfigIDDefault},
			SupportsAzimuth:    true,
			SupportsElevation:  true,
		},
		samples: make(chan uwb.RangingSample, 16),
		started: make(chan uwb.SessionParameters, 4),
		done:    make(chan struct{}),
	}
}

// FailStart makes the next StartRanging return err.
func (h *Handle) FailStart(err error) *Handle {
	h.startErr = err
	return h
}

func (h *Handle) LocalAddress() uwb.Address          { return h.Addr }
func (h *Handle) ComplexChannel() uwb.ComplexChannel { return h.Channel }
func (h *Handle) Capabilities() uwb.Capabilities     { return h.Caps }

func (h *Handle) StartRanging(ctx context.Context, params uwb.SessionParameters) (<-chan uwb.RangingSample, error) {
	select {
	case h.started <- params.Clone():
	default:
	}
	if h.startErr != nil {
		return nil, h.startErr
	}
	out := make(chan uwb.RangingSample)
	go func() {
		defer close(out)
		defer h.once.Do(func() { close(h.done) })
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-h.samples:
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (h *Handle) Stop() error {
	h.stops.Add(1)
	return nil
}

// Push queues a sample for delivery by a running StartRanging.
func (h *Handle) Push(s uwb.RangingSample) {
	h.samples <- s
}

func (h *Handle) Stops() int {
	return int(h.stops.Load())
}

// WaitStarted returns the parameters passed to StartRanging.
func (h *Handle) WaitStarted(t testing.TB) uwb.SessionParameters {
	t.Helper()
	select {
	case p := <-h.started:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("ranging not started on %s", h.Addr)
	}
	return uwb.SessionParameters{}
}

// WaitRangingDone waits for the ranging goroutine to observe cancellation.
func (h *Handle) WaitRangingDone(t testing.TB) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ranging on %s not cancelled", h.Addr)
	}
}

// WaitStops polls until Stop has been called at least n times.
func (h *Handle) WaitStops(t testing.TB, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Stops() < n {
		if time.Now().After(deadline) {
			t.Fatalf("handle %s stopped %d times, want %d", h.Addr, h.Stops(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Engine hands out Handles with sequential addresses {prefix, n}.
type Engine struct {
	mu      sync.Mutex
	prefix  byte
	next    byte
	err     error
	handles []*Handle
}

func NewEngine(prefix byte) *Engine {
	return &Engine{prefix: prefix}
}

// Fail makes every subsequent session creation return err.
func (e *Engine) Fail(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *Engine) NewControllerSession(_ context.Context, _ int) (uwb.SessionHandle, error) {
	return e.newHandle()
}

func (e *Engine) NewControleeSession(_ context.Context) (uwb.SessionHandle, error) {
	return e.newHandle()
}

func (e *Engine) newHandle() (uwb.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.next++
	h := NewHandle([]byte{e.prefix, e.next})
	e.handles = append(e.handles, h)
	return h, nil
}

func (e *Engine) Handles() []*Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Handle(nil), e.handles...)
}

// Handle returns the i-th created handle, failing the test if absent.
func (e *Engine) Handle(t testing.TB, i int) *Handle {
	t.Helper()
	hs := e.Handles()
	if i >= len(hs) {
		t.Fatalf("engine created %d handles, want index %d", len(hs), i)
	}
	return hs[i]
}
