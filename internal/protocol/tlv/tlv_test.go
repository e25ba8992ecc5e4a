package tlv

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	in := []Field{
		NewString(1, "uwb.alpha"),
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}}, // unknown field id
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestGetFieldsKeepsRepeatedOrder(t *testing.T) {
	fields := []Field{NewU32(100, 7), NewString(1, "x"), NewU32(100, 3), NewU32(100, 9)}
	out, err := DecodeFields(EncodeFields(fields))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := GetFields(out, 100)
	if len(got) != 3 {
		t.Fatalf("expected 3 repeated fields, got %d", len(got))
	}
	want := []uint32{7, 3, 9}
	for i, f := range got {
		v, err := f.U32()
		if err != nil {
			t.Fatalf("u32[%d]: %v", i, err)
		}
		if v != want[i] {
			t.Fatalf("u32[%d]=%d want %d", i, v, want[i])
		}
	}
}

func TestTypedAccessorsRejectMismatch(t *testing.T) {
	if _, err := NewString(1, "x").U32(); !errors.Is(err, ErrFieldTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	if _, err := (Field{ID: 2, Type: TypeU32, Value: []byte{1}}).U32(); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected invalid length, got %v", err)
	}
	if _, err := (Field{ID: 3, Type: TypeBool, Value: []byte{2}}).Bool(); !errors.Is(err, ErrInvalidBool) {
		t.Fatalf("expected invalid bool, got %v", err)
	}
	v, err := NewBool(4, true).Bool()
	if err != nil || !v {
		t.Fatalf("bool round trip: v=%v err=%v", v, err)
	}
	if _, err := NewBytes(5, []byte("x")).Str(); !errors.Is(err, ErrFieldTypeMismatch) {
		t.Fatalf("expected string type mismatch, got %v", err)
	}
	if s, err := NewString(6, "UWB1").Str(); err != nil || s != "UWB1" {
		t.Fatalf("string round trip: s=%q err=%v", s, err)
	}
}

func TestNewBytesCopiesInput(t *testing.T) {
	src := []byte{1, 2, 3}
	f := NewBytes(5, src)
	src[0] = 9
	got, err := f.Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if got[0] != 1 {
		t.Fatalf("field aliases caller buffer: %v", got)
	}
}
