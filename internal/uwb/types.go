package uwb

import (
	"bytes"
	"encoding/hex"
	"slices"
	"time"
)

// UWB configuration ids (static STS DS-TWR). Controllers offer the unicast
// config unless configured otherwise.
const (
	ConfigIDUnicastDSTWR   = 1
	ConfigIDMulticastDSTWR = 2

	ConfigIDDefault = ConfigIDUnicastDSTWR
)

// DefaultSupportedConfigIDs is what a controlee advertises unless configured
// otherwise.
func DefaultSupportedConfigIDs() []int {
	return []int{ConfigIDUnicastDSTWR, ConfigIDMulticastDSTWR}
}

// SessionKeyInfoLen is the size of the controller-generated session key blob.
const SessionKeyInfoLen = 8

// Endpoint is the stable logical identity of a peer. Equality is by ID only;
// Metadata is opaque application payload.
type Endpoint struct {
	ID       string
	Metadata []byte
}

func NewEndpoint(id string, metadata []byte) Endpoint {
	return Endpoint{ID: id, Metadata: cloneBytes(metadata)}
}

func (e Endpoint) Equal(other Endpoint) bool {
	return e.ID == other.ID
}

// Key is the map key for per-endpoint state.
func (e Endpoint) Key() string {
	return e.ID
}

func (e Endpoint) String() string {
	return e.ID
}

// Address is a ranging-layer device address. It wraps raw bytes so it can be
// used as a map key.
type Address string

func AddressFromBytes(b []byte) Address {
	return Address(b)
}

func (a Address) Bytes() []byte {
	return []byte(a)
}

func (a Address) IsZero() bool {
	return len(a) == 0
}

func (a Address) String() string {
	return hex.EncodeToString([]byte(a))
}

// ComplexChannel is the PHY channel plus preamble index pair.
type ComplexChannel struct {
	Channel       int
	PreambleIndex int
}

type UpdateRate int

const (
	UpdateRateAutomatic UpdateRate = iota
	UpdateRateInfrequent
	UpdateRateFrequent
)

func (r UpdateRate) String() string {
	switch r {
	case UpdateRateAutomatic:
		return "automatic"
	case UpdateRateInfrequent:
		return "infrequent"
	case UpdateRateFrequent:
		return "frequent"
	default:
		return "unknown"
	}
}

// SessionParameters is the negotiated configuration for one ranging session.
type SessionParameters struct {
	ConfigID       int
	SessionID      int32
	SessionKeyInfo []byte
	ComplexChannel ComplexChannel
	PeerAddress    Address
	UpdateRate     UpdateRate
}

func (p SessionParameters) Clone() SessionParameters {
	out := p
	out.SessionKeyInfo = cloneBytes(p.SessionKeyInfo)
	return out
}

// SameSession reports whether both sides agree on everything except the peer
// address, which is necessarily role-relative.
func (p SessionParameters) SameSession(other SessionParameters) bool {
	return p.ConfigID == other.ConfigID &&
		p.SessionID == other.SessionID &&
		p.ComplexChannel == other.ComplexChannel &&
		bytes.Equal(p.SessionKeyInfo, other.SessionKeyInfo)
}

// Capabilities is what a controlee advertises.
type Capabilities struct {
	SupportedConfigIDs []int
	SupportsAzimuth    bool
	SupportsElevation  bool
}

func (c Capabilities) Supports(configID int) bool {
	return slices.Contains(c.SupportedConfigIDs, configID)
}

// Measurement is one angle or distance reading.
type Measurement struct {
	Value float64
}

// Position is one ranging sample's geometry. Nil fields were not measured.
type Position struct {
	Distance  *Measurement
	Azimuth   *Measurement
	Elevation *Measurement
	Elapsed   time.Duration
}

type SampleKind int

const (
	SamplePosition SampleKind = iota
	SamplePeerDisconnected
)

func (k SampleKind) String() string {
	switch k {
	case SamplePosition:
		return "position"
	case SamplePeerDisconnected:
		return "peer_disconnected"
	default:
		return "unknown"
	}
}

// RangingSample is one engine report keyed by device address.
type RangingSample struct {
	Address  Address
	Kind     SampleKind
	Position Position
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
