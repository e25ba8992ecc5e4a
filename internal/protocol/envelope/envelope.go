package envelope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/uwbranging/internal/protocol/frame"
	"github.com/danmuck/uwbranging/internal/protocol/schema"
	"github.com/danmuck/uwbranging/internal/protocol/tlv"
)

var (
	ErrInvalidControl = errors.New("envelope: invalid control message")
	ErrInvalidData    = errors.New("envelope: invalid data message")
	ErrNotEnvelope    = errors.New("envelope: payload is neither control nor data")
)

// Capabilities is the controlee's advertisement.
type Capabilities struct {
	SupportedConfigIDs []uint32
	SupportsAzimuth    bool
	SupportsElevation  bool
}

// Configuration is the controller's session offer.
type Configuration struct {
	ConfigID      uint32
	SessionID     int32
	Channel       uint32
	PreambleIndex uint32
	SecurityInfo  []byte
}

// Control is one negotiation message. Exactly one of Capabilities or
// Configuration is set.
type Control struct {
	PeerID        string
	PeerMetadata  []byte
	LocalAddress  []byte
	Capabilities  *Capabilities
	Configuration *Configuration
}

func (c Control) Validate() error {
	if strings.TrimSpace(c.PeerID) == "" {
		return fmt.Errorf("%w: missing peer_id", ErrInvalidControl)
	}
	if len(c.LocalAddress) == 0 {
		return fmt.Errorf("%w: missing local_address", ErrInvalidControl)
	}
	if (c.Capabilities == nil) == (c.Configuration == nil) {
		return fmt.Errorf("%w: exactly one of capabilities or configuration required", ErrInvalidControl)
	}
	if c.Configuration != nil && len(c.Configuration.SecurityInfo) == 0 {
		return fmt.Errorf("%w: missing security_info", ErrInvalidControl)
	}
	return nil
}

func (c Control) messageType() uint32 {
	if c.Configuration != nil {
		return schema.MsgConfiguration
	}
	return schema.MsgCapabilities
}

// Data is an application message carried over OOB once a peer is bound.
type Data struct {
	Message []byte
}

// Envelope is one decoded transport payload: either Control or Data.
type Envelope struct {
	MessageID uint64
	Control   *Control
	Data      *Data
}

func EncodeControl(messageID uint64, c Control) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	fields := []tlv.Field{
		tlv.NewString(schema.FieldPeerID, c.PeerID),
		tlv.NewBytes(schema.FieldPeerMetadata, c.PeerMetadata),
		tlv.NewBytes(schema.FieldLocalAddress, c.LocalAddress),
	}
	if caps := c.Capabilities; caps != nil {
		for _, id := range caps.SupportedConfigIDs {
			fields = append(fields, tlv.NewU32(schema.FieldSupportedConfigID, id))
		}
		fields = append(fields,
			tlv.NewBool(schema.FieldSupportsAzimuth, caps.SupportsAzimuth),
			tlv.NewBool(schema.FieldSupportsElevation, caps.SupportsElevation),
		)
	}
	if cfg := c.Configuration; cfg != nil {
		fields = append(fields,
			tlv.NewU32(schema.FieldConfigID, cfg.ConfigID),
			tlv.NewU32(schema.FieldSessionID, uint32(cfg.SessionID)),
			tlv.NewU32(schema.FieldChannel, cfg.Channel),
			tlv.NewU32(schema.FieldPreambleIndex, cfg.PreambleIndex),
			tlv.NewBytes(schema.FieldSecurityInfo, cfg.SecurityInfo),
		)
	}
	return encode(messageID, c.messageType(), fields)
}

func EncodeData(messageID uint64, d Data) ([]byte, error) {
	if d.Message == nil {
		return nil, fmt.Errorf("%w: missing message", ErrInvalidData)
	}
	fields := []tlv.Field{tlv.NewBytes(schema.FieldMessage, d.Message)}
	return encode(messageID, schema.MsgData, fields)
}

func encode(messageID uint64, messageType uint32, fields []tlv.Field) ([]byte, error) {
	if err := schema.Validate(messageType, fields); err != nil {
		return nil, err
	}
	return frame.Marshal(frame.Frame{
		Header: frame.Header{
			MessageID:   messageID,
			MessageType: messageType,
		},
		Payload: tlv.EncodeFields(fields),
	}, frame.DefaultLimits())
}

// Decode applies the OOB decode policy: control first, then data. Anything
// else yields ErrNotEnvelope and should be discarded by the caller.
func Decode(payload []byte) (Envelope, error) {
	f, err := frame.Unmarshal(payload, frame.DefaultLimits())
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrNotEnvelope, err)
	}
	env := Envelope{MessageID: f.Header.MessageID}
	if schema.IsControl(f.Header.MessageType) {
		if c, err := DecodeControl(f); err == nil {
			env.Control = &c
			return env, nil
		}
	}
	d, err := DecodeData(f)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrNotEnvelope, err)
	}
	env.Data = &d
	return env, nil
}

func DecodeControl(f frame.Frame) (Control, error) {
	mt := f.Header.MessageType
	if !schema.IsControl(mt) {
		return Control{}, fmt.Errorf("%w: message_type=%d", ErrInvalidControl, mt)
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Control{}, err
	}
	if err := schema.Validate(mt, fields); err != nil {
		return Control{}, err
	}
	c := Control{
		PeerID:       getString(fields, schema.FieldPeerID),
		PeerMetadata: getBytes(fields, schema.FieldPeerMetadata),
		LocalAddress: getBytes(fields, schema.FieldLocalAddress),
	}
	switch mt {
	case schema.MsgCapabilities:
		caps := &Capabilities{
			SupportsAzimuth:   getBool(fields, schema.FieldSupportsAzimuth),
			SupportsElevation: getBool(fields, schema.FieldSupportsElevation),
		}
		for _, idField := range tlv.GetFields(fields, schema.FieldSupportedConfigID) {
			id, err := idField.U32()
			if err != nil {
				return Control{}, err
			}
			caps.SupportedConfigIDs = append(caps.SupportedConfigIDs, id)
		}
		c.Capabilities = caps
	case schema.MsgConfiguration:
		cfg := &Configuration{SecurityInfo: getBytes(fields, schema.FieldSecurityInfo)}
		var sessionID uint32
		for _, target := range []struct {
			id  uint16
			dst *uint32
		}{
			{schema.FieldConfigID, &cfg.ConfigID},
			{schema.FieldSessionID, &sessionID},
			{schema.FieldChannel, &cfg.Channel},
			{schema.FieldPreambleIndex, &cfg.PreambleIndex},
		} {
			field, _ := tlv.GetField(fields, target.id)
			v, err := field.U32()
			if err != nil {
				return Control{}, err
			}
			*target.dst = v
		}
		cfg.SessionID = int32(sessionID)
		c.Configuration = cfg
	}
	if err := c.Validate(); err != nil {
		return Control{}, err
	}
	return c, nil
}

func DecodeData(f frame.Frame) (Data, error) {
	if f.Header.MessageType != schema.MsgData {
		return Data{}, fmt.Errorf("%w: message_type=%d", ErrInvalidData, f.Header.MessageType)
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Data{}, err
	}
	if err := schema.Validate(schema.MsgData, fields); err != nil {
		return Data{}, err
	}
	return Data{Message: getBytes(fields, schema.FieldMessage)}, nil
}

func getString(fields []tlv.Field, id uint16) string {
	f, ok := tlv.GetField(fields, id)
	if !ok {
		return ""
	}
	v, _ := f.Str()
	return v
}

func getBytes(fields []tlv.Field, id uint16) []byte {
	f, ok := tlv.GetField(fields, id)
	if !ok {
		return nil
	}
	b, _ := f.Bytes()
	return b
}

func getBool(fields []tlv.Field, id uint16) bool {
	f, ok := tlv.GetField(fields, id)
	if !ok {
		return false
	}
	v, _ := f.Bool()
	return v
}
