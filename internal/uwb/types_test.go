package uwb

import "testing"

func TestEndpointEqualityIgnoresMetadata(t *testing.T) {
	a := NewEndpoint("UWB1", []byte{1, 2, 3})
	b := NewEndpoint("UWB1", []byte{9})
	if !a.Equal(b) || a.Key() != b.Key() {
		t.Fatalf("endpoints with same id must be equal")
	}
	if a.Equal(NewEndpoint("UWB2", []byte{1, 2, 3})) {
		t.Fatalf("endpoints with different ids must differ")
	}
}

func TestSessionParametersCloneAndSameSession(t *testing.T) {
	p := SessionParameters{
		ConfigID:       ConfigIDDefault,
		SessionID:      0x12345678,
		SessionKeyInfo: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		ComplexChannel: ComplexChannel{Channel: 9, PreambleIndex: 11},
		PeerAddress:    AddressFromBytes([]byte{1, 2}),
	}
	c := p.Clone()
	c.SessionKeyInfo[0] = 0xFF
	if p.SessionKeyInfo[0] != 1 {
		t.Fatalf("clone aliases key info")
	}
	other := p.Clone()
	other.PeerAddress = AddressFromBytes([]byte{3, 4})
	if !p.SameSession(other) {
		t.Fatalf("peer address must not affect SameSession")
	}
	if p.SameSession(c) {
		t.Fatalf("different key info must not be SameSession")
	}
}

func TestCapabilitiesSupports(t *testing.T) {
	c := Capabilities{SupportedConfigIDs: []int{1, 7}}
	if !c.Supports(7) || c.Supports(3) {
		t.Fatalf("unexpected Supports result for %+v", c)
	}
}

func TestAddressString(t *testing.T) {
	a := AddressFromBytes([]byte{0x0A, 0xFF})
	if a.String() != "0aff" {
		t.Fatalf("unexpected address string: %q", a.String())
	}
	if !Address("").IsZero() || a.IsZero() {
		t.Fatalf("unexpected IsZero")
	}
}

func TestEndpointMessageCopiesPayload(t *testing.T) {
	msg := []byte{3, 2, 1}
	ev := EndpointMessage(NewEndpoint("UWB2", nil), msg)
	msg[0] = 0
	if ev.Message[0] != 3 {
		t.Fatalf("event aliases message buffer")
	}
	if ev.Kind.String() != "endpoint_message" {
		t.Fatalf("unexpected kind string: %q", ev.Kind.String())
	}
}
