package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic is "UWB0" and marks every OOB frame.
	Magic   uint32 = 0x55574230
	Version uint16 = 1

	// HeaderLen is fixed; OOB frames carry no extension section.
	FixedHeaderLen uint16 = 32
)

var (
	ErrShortHeader        = errors.New("frame: short fixed header")
	ErrHeaderLen          = errors.New("frame: header_len does not match fixed header")
	ErrReservedFlags      = errors.New("frame: reserved flags set")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
	ErrInvalidMagic       = errors.New("frame: invalid magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrTrailingBytes      = errors.New("frame: trailing bytes after payload")
)

// Header is the fixed wire header.
type Header struct {
	Magic       uint32
	Version     uint16
	HeaderLen   uint16
	MessageID   uint64
	MessageType uint32
	Flags       uint32
	PayloadLen  uint64
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

// DefaultLimits sizes frames for OOB payloads, which are a few hundred bytes
// for control messages and bounded application messages for data.
func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 256 * 1024,
	}
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}

	if h.HeaderLen != FixedHeaderLen {
		return Frame{}, ErrHeaderLen
	}
	if h.Flags != 0 {
		return Frame{}, ErrReservedFlags
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}

	return Frame{Header: h, Payload: payload}, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	payloadLen := uint64(len(f.Payload))
	if payloadLen > limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	if f.Header.Flags != 0 {
		return ErrReservedFlags
	}

	h := f.Header
	h.HeaderLen = FixedHeaderLen
	h.PayloadLen = payloadLen

	if _, err := w.Write(EncodeHeader(h)); err != nil {
		return err
	}
	if payloadLen > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Marshal stamps magic and version and returns the encoded frame.
func Marshal(f Frame, limits Limits) ([]byte, error) {
	f.Header.Magic = Magic
	f.Header.Version = Version
	var buf bytes.Buffer
	if err := WriteFrame(&buf, f, limits); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes exactly one frame from b. Transport payloads carry one
// frame each, so leftover bytes are an error.
func Unmarshal(b []byte, limits Limits) (Frame, error) {
	r := bytes.NewReader(b)
	f, err := ReadFrame(r, limits)
	if err != nil {
		return Frame{}, err
	}
	if f.Header.Magic != Magic {
		return Frame{}, ErrInvalidMagic
	}
	if f.Header.Version != Version {
		return Frame{}, ErrUnsupportedVersion
	}
	if r.Len() != 0 {
		return Frame{}, ErrTrailingBytes
	}
	return f, nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.HeaderLen)
	binary.BigEndian.PutUint64(buf[8:16], h.MessageID)
	binary.BigEndian.PutUint32(buf[16:20], h.MessageType)
	binary.BigEndian.PutUint32(buf[20:24], h.Flags)
	binary.BigEndian.PutUint64(buf[24:32], h.PayloadLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:       binary.BigEndian.Uint32(b[0:4]),
		Version:     binary.BigEndian.Uint16(b[4:6]),
		HeaderLen:   binary.BigEndian.Uint16(b[6:8]),
		MessageID:   binary.BigEndian.Uint64(b[8:16]),
		MessageType: binary.BigEndian.Uint32(b[16:20]),
		Flags:       binary.BigEndian.Uint32(b[20:24]),
		PayloadLen:  binary.BigEndian.Uint64(b[24:32]),
	}, nil
}
