package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/uwbranging/internal/testutil/testlog"
	"github.com/danmuck/uwbranging/internal/uwb"
)

func testParams(peer uwb.Address) uwb.SessionParameters {
	return uwb.SessionParameters{
		ConfigID:       uwb.ConfigIDDefault,
		SessionID:      0x12345678,
		SessionKeyInfo: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		ComplexChannel: uwb.ComplexChannel{Channel: 9, PreambleIndex: 11},
		PeerAddress:    peer,
		UpdateRate:     uwb.UpdateRateFrequent,
	}
}

func TestSessionsGetUniqueAddresses(t *testing.T) {
	testlog.Start(t)
	e := New(Config{Seed: 42})
	seen := make(map[uwb.Address]bool)
	for i := 0; i < 64; i++ {
		h, err := e.NewControleeSession(context.Background())
		if err != nil {
			t.Fatalf("new session: %v", err)
		}
		addr := h.LocalAddress()
		if len(addr.Bytes()) != 2 || seen[addr] {
			t.Fatalf("address %s is not a unique short address", addr)
		}
		seen[addr] = true
	}
	ctrl, err := e.NewControllerSession(context.Background(), uwb.ConfigIDDefault)
	if err != nil {
		t.Fatalf("controller session: %v", err)
	}
	if ctrl.ComplexChannel() != (uwb.ComplexChannel{Channel: 9, PreambleIndex: 11}) {
		t.Fatalf("unexpected channel: %+v", ctrl.ComplexChannel())
	}
	if _, err := e.NewControllerSession(context.Background(), 5); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestRangingReportsPeerAndStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	e := New(Config{Seed: 7, Interval: 5 * time.Millisecond})
	h, err := e.NewControllerSession(context.Background(), uwb.ConfigIDDefault)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	peer := uwb.AddressFromBytes([]byte{3, 4})
	ctx, cancel := context.WithCancel(context.Background())
	samples, err := h.StartRanging(ctx, testParams(peer))
	if err != nil {
		t.Fatalf("start ranging: %v", err)
	}
	if _, err := h.StartRanging(ctx, testParams(peer)); !errors.Is(err, ErrAlreadyRanging) {
		t.Fatalf("expected ErrAlreadyRanging, got %v", err)
	}
	for i := 0; i < 3; i++ {
		select {
		case s := <-samples:
			if s.Address != peer || s.Kind != uwb.SamplePosition || s.Position.Distance == nil || s.Position.Distance.Value <= 0 {
				t.Fatalf("unexpected sample: %+v", s)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for sample %d", i)
		}
	}
	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-samples:
			if !ok {
				if err := h.Stop(); err != nil {
					t.Fatalf("stop: %v", err)
				}
				if err := h.Stop(); err != nil {
					t.Fatalf("second stop: %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatalf("samples channel not closed after cancel")
		}
	}
}

func TestDisconnectAfterEndsWithPeerDisconnected(t *testing.T) {
	testlog.Start(t)
	e := New(Config{Seed: 3, Interval: time.Millisecond, DisconnectAfter: 2})
	h, _ := e.NewControleeSession(context.Background())
	samples, err := h.StartRanging(context.Background(), testParams(uwb.AddressFromBytes([]byte{1, 2})))
	if err != nil {
		t.Fatalf("start ranging: %v", err)
	}
	var kinds []uwb.SampleKind
	for s := range samples {
		kinds = append(kinds, s.Kind)
	}
	if len(kinds) != 3 || kinds[2] != uwb.SamplePeerDisconnected {
		t.Fatalf("unexpected sample kinds: %v", kinds)
	}
}

func TestStartRangingValidation(t *testing.T) {
	testlog.Start(t)
	e := New(Config{Seed: 1})
	h, _ := e.NewControleeSession(context.Background())
	if _, err := h.StartRanging(context.Background(), uwb.SessionParameters{}); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	_ = h.Stop()
	if _, err := h.StartRanging(context.Background(), testParams("\x01\x02")); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.NewControleeSession(ctx); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
