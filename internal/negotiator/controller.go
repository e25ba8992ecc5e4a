package negotiator

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/observability"
	"github.com/danmuck/uwbranging/internal/protocol/envelope"
	"github.com/danmuck/uwbranging/internal/transport"
	"github.com/danmuck/uwbranging/internal/uwb"
	"golang.org/x/crypto/hkdf"
)

const roleController = "controller"

// controller discovers controlees, accepts compatible capabilities, and
// answers with a freshly generated session configuration.
type controller struct{}

func (controller) Name() string         { return roleController }
func (controller) Mode() transport.Mode { return transport.ModeDiscover }

func (controller) connected(_ context.Context, n *Negotiator, tid string) {
	n.track(tid)
}

func (controller) control(ctx context.Context, n *Negotiator, tid string, msg envelope.Control) {
	if msg.Capabilities == nil {
		n.drop(tid, observability.DropUnexpected, nil)
		return
	}
	c := n.track(tid)
	if c.state == StateConfigured {
		observability.RecordNegotiation(roleController, observability.OutcomeDuplicate)
		logging.Debugf("negotiator.controller ignore capabilities tid=%q reason=already_configured", tid)
		return
	}
	caps := capabilitiesFromWire(msg.Capabilities)
	configID := n.cfg.ConfigID
	if !caps.Supports(configID) {
		observability.RecordNegotiation(roleController, observability.OutcomeIncompatible)
		logging.Debugf("negotiator.controller incompatible tid=%q peer=%q config_id=%d supported=%v",
			tid, msg.PeerID, configID, caps.SupportedConfigIDs)
		return
	}
	c.state = StateCapabilitiesKnown

	endpoint := uwb.NewEndpoint(msg.PeerID, msg.PeerMetadata)
	n.endpoints.Bind(tid, endpoint)

	handle, err := n.engine.NewControllerSession(ctx, configID)
	if err != nil {
		n.endpoints.Unbind(tid)
		observability.RecordNegotiation(roleController, observability.OutcomeEngineError)
		logging.Warnf("negotiator.controller session create failed tid=%q peer=%q err=%v", tid, endpoint, err)
		return
	}
	sessionID, key, err := newSessionSecret(n.cfg.Local.ID, msg.PeerID)
	if err != nil {
		_ = handle.Stop()
		n.endpoints.Unbind(tid)
		observability.RecordNegotiation(roleController, observability.OutcomeEngineError)
		logging.Errf("negotiator.controller session secret failed tid=%q err=%v", tid, err)
		return
	}
	channel := handle.ComplexChannel()
	params := uwb.SessionParameters{
		ConfigID:       configID,
		SessionID:      sessionID,
		SessionKeyInfo: key,
		ComplexChannel: channel,
		PeerAddress:    uwb.AddressFromBytes(msg.LocalAddress),
		UpdateRate:     uwb.UpdateRateFrequent,
	}

	n.sendControl(ctx, tid, envelope.Control{
		PeerID:       n.cfg.Local.ID,
		PeerMetadata: n.cfg.Local.Metadata,
		LocalAddress: handle.LocalAddress().Bytes(),
		Configuration: &envelope.Configuration{
			ConfigID:      uint32(configID),
			SessionID:     sessionID,
			Channel:       uint32(channel.Channel),
			PreambleIndex: uint32(channel.PreambleIndex),
			SecurityInfo:  key,
		},
	})

	c.state = StateConfigured
	c.handle = handle
	c.handedOff = true
	observability.RecordNegotiation(roleController, observability.OutcomeConfigured)
	logging.Infof("negotiator.controller configured tid=%q peer=%q session_id=%d peer_addr=%s",
		tid, endpoint, sessionID, params.PeerAddress)
	n.emit(ctx, Found(endpoint, c.attempt, params, handle))
}

func capabilitiesFromWire(in *envelope.Capabilities) uwb.Capabilities {
	out := uwb.Capabilities{
		SupportsAzimuth:   in.SupportsAzimuth,
		SupportsElevation: in.SupportsElevation,
	}
	for _, id := range in.SupportedConfigIDs {
		out.SupportedConfigIDs = append(out.SupportedConfigIDs, int(id))
	}
	return out
}

// newSessionSecret returns a random session id and a key blob bound to both
// peer ids.
func newSessionSecret(controllerID, controleeID string) (int32, []byte, error) {
	seed := make([]byte, 4+32)
	if _, err := rand.Read(seed); err != nil {
		return 0, nil, fmt.Errorf("negotiator: read random: %w", err)
	}
	info := []byte("uwb|ski|" + controllerID + "|" + controleeID)
	key := make([]byte, uwb.SessionKeyInfoLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed[4:], seed[:4], info), key); err != nil {
		return 0, nil, fmt.Errorf("negotiator: derive key: %w", err)
	}
	return int32(binary.BigEndian.Uint32(seed[:4])), key, nil
}
