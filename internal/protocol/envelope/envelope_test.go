package envelope

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/uwbranging/internal/protocol/frame"
	"github.com/danmuck/uwbranging/internal/protocol/schema"
	"github.com/danmuck/uwbranging/internal/protocol/tlv"
	"github.com/danmuck/uwbranging/internal/testutil/testlog"
)

func TestCapabilitiesRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := Control{
		PeerID:       "UWB1",
		PeerMetadata: []byte{1, 2, 3},
		LocalAddress: []byte{1, 2},
		Capabilities: &Capabilities{
			SupportedConfigIDs: []uint32{1, 7},
			SupportsAzimuth:    true,
			SupportsElevation:  true,
		},
	}
	b, err := EncodeControl(11, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.MessageID != 11 || env.Control == nil || env.Data != nil {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	got := env.Control
	if got.PeerID != "UWB1" || !bytes.Equal(got.PeerMetadata, in.PeerMetadata) || !bytes.Equal(got.LocalAddress, in.LocalAddress) {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if got.Configuration != nil || got.Capabilities == nil {
		t.Fatalf("expected capabilities only: %+v", got)
	}
	if len(got.Capabilities.SupportedConfigIDs) != 2 || got.Capabilities.SupportedConfigIDs[1] != 7 {
		t.Fatalf("config ids mismatch: %+v", got.Capabilities.SupportedConfigIDs)
	}
	if !got.Capabilities.SupportsAzimuth || !got.Capabilities.SupportsElevation {
		t.Fatalf("angle capabilities mismatch: %+v", got.Capabilities)
	}
}

func TestConfigurationRoundTripKeepsNegativeSessionID(t *testing.T) {
	testlog.Start(t)
	in := Control{
		PeerID:       "UWB2",
		LocalAddress: []byte{3, 4},
		Configuration: &Configuration{
			ConfigID:      1,
			SessionID:     -12345,
			Channel:       9,
			PreambleIndex: 11,
			SecurityInfo:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
		},
	}
	b, err := EncodeControl(1, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cfg := env.Control.Configuration
	if cfg == nil {
		t.Fatalf("expected configuration")
	}
	if cfg.SessionID != -12345 || cfg.Channel != 9 || cfg.PreambleIndex != 11 || cfg.ConfigID != 1 {
		t.Fatalf("configuration mismatch: %+v", cfg)
	}
	if !bytes.Equal(cfg.SecurityInfo, in.Configuration.SecurityInfo) {
		t.Fatalf("security info mismatch")
	}
}

func TestDataRoundTrip(t *testing.T) {
	testlog.Start(t)
	b, err := EncodeData(5, Data{Message: []byte{3, 2, 1}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Control != nil || env.Data == nil || !bytes.Equal(env.Data.Message, []byte{3, 2, 1}) {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestEncodeControlRejectsAmbiguousBody(t *testing.T) {
	testlog.Start(t)
	_, err := EncodeControl(1, Control{PeerID: "x", LocalAddress: []byte{1}})
	if !errors.Is(err, ErrInvalidControl) {
		t.Fatalf("expected ErrInvalidControl, got %v", err)
	}
	_, err = EncodeControl(1, Control{
		PeerID:        "x",
		LocalAddress:  []byte{1},
		Capabilities:  &Capabilities{},
		Configuration: &Configuration{SecurityInfo: []byte{1}},
	})
	if !errors.Is(err, ErrInvalidControl) {
		t.Fatalf("expected ErrInvalidControl for both bodies, got %v", err)
	}
}

func TestDecodeDiscardsGarbageAndForeignFrames(t *testing.T) {
	testlog.Start(t)
	cases := map[string][]byte{
		"empty":   nil,
		"garbage": {1, 2, 3, 4, 5},
	}
	unknown, err := frame.Marshal(frame.Frame{
		Header:  frame.Header{MessageType: 42},
		Payload: tlv.EncodeFields([]tlv.Field{tlv.NewString(1, "x")}),
	}, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("marshal unknown: %v", err)
	}
	cases["unknown_type"] = unknown

	truncatedControl, err := frame.Marshal(frame.Frame{
		Header:  frame.Header{MessageType: schema.MsgConfiguration},
		Payload: tlv.EncodeFields([]tlv.Field{tlv.NewString(schema.FieldPeerID, "UWB2")}),
	}, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("marshal truncated: %v", err)
	}
	cases["control_missing_fields"] = truncatedControl

	for name, payload := range cases {
		if _, err := Decode(payload); !errors.Is(err, ErrNotEnvelope) {
			t.Fatalf("%s: expected ErrNotEnvelope, got %v", name, err)
		}
	}
}
