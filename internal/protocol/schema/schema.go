package schema

import (
	"fmt"

	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/protocol/tlv"
)

// Message type IDs carried in the frame header.
const (
	MsgCapabilities  uint32 = 1
	MsgConfiguration uint32 = 2
	MsgData          uint32 = 3
)

// Field IDs from tlv contract.
const (
	FieldPeerID       uint16 = 1
	FieldPeerMetadata uint16 = 2
	FieldLocalAddress uint16 = 3

	FieldSupportedConfigID uint16 = 100 // repeated
	FieldSupportsAzimuth   uint16 = 101
	FieldSupportsElevation uint16 = 102

	FieldConfigID      uint16 = 200
	FieldSessionID     uint16 = 201
	FieldChannel       uint16 = 202
	FieldPreambleIndex uint16 = 203
	FieldSecurityInfo  uint16 = 204

	FieldMessage uint16 = 300
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgCapabilities: {
		{FieldPeerID, tlv.TypeString},
		{FieldLocalAddress, tlv.TypeBytes},
	},
	MsgConfiguration: {
		{FieldPeerID, tlv.TypeString},
		{FieldLocalAddress, tlv.TypeBytes},
		{FieldConfigID, tlv.TypeU32},
		{FieldSessionID, tlv.TypeU32},
		{FieldChannel, tlv.TypeU32},
		{FieldPreambleIndex, tlv.TypeU32},
		{FieldSecurityInfo, tlv.TypeBytes},
	},
	MsgData: {
		{FieldMessage, tlv.TypeBytes},
	},
}

// optional lists fields that may be absent but must have the right type when present.
var optional = map[uint32][]Requirement{
	MsgCapabilities: {
		{FieldPeerMetadata, tlv.TypeBytes},
		{FieldSupportedConfigID, tlv.TypeU32},
		{FieldSupportsAzimuth, tlv.TypeBool},
		{FieldSupportsElevation, tlv.TypeBool},
	},
	MsgConfiguration: {
		{FieldPeerMetadata, tlv.TypeBytes},
	},
}

// IsControl reports whether messageType is a negotiation message.
func IsControl(messageType uint32) bool {
	return messageType == MsgCapabilities || messageType == MsgConfiguration
}

// Validate enforces required fields and required field types for a message type.
// Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		logging.Debugf("schema.Validate unknown message_type=%d", messageType)
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			logging.Debugf(
				"schema.Validate missing field message_type=%d field_id=%d",
				messageType,
				req.ID,
			)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			logging.Debugf(
				"schema.Validate type mismatch message_type=%d field_id=%d got=%d want=%d",
				messageType,
				req.ID,
				f.Type,
				req.Type,
			)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	for _, opt := range optional[messageType] {
		for _, f := range tlv.GetFields(fields, opt.ID) {
			if f.Type != opt.Type {
				return ValidationError{MessageType: messageType, FieldID: opt.ID, Reason: "type mismatch"}
			}
		}
	}
	return nil
}
