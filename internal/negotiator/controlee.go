package negotiator

import (
	"context"

	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/observability"
	"github.com/danmuck/uwbranging/internal/protocol/envelope"
	"github.com/danmuck/uwbranging/internal/transport"
	"github.com/danmuck/uwbranging/internal/uwb"
)

const roleControlee = "controlee"

// controlee advertises, sends its capabilities on connect, and accepts the
// controller's configuration.
type controlee struct{}

func (controlee) Name() string         { return roleControlee }
func (controlee) Mode() transport.Mode { return transport.ModeAdvertise }

func (controlee) connected(ctx context.Context, n *Negotiator, tid string) {
	if _, ok := n.conns[tid]; ok {
		logging.Debugf("negotiator.controlee duplicate connect tid=%q", tid)
		return
	}
	handle, err := n.engine.NewControleeSession(ctx)
	if err != nil {
		observability.RecordNegotiation(roleControlee, observability.OutcomeEngineError)
		logging.Warnf("negotiator.controlee session create failed tid=%q err=%v", tid, err)
		return
	}
	c := n.track(tid)
	c.handle = handle

	caps := handle.Capabilities()
	ids := make([]uint32, 0, len(n.cfg.SupportedConfigIDs))
	for _, id := range n.cfg.SupportedConfigIDs {
		ids = append(ids, uint32(id))
	}
	n.sendControl(ctx, tid, envelope.Control{
		PeerID:       n.cfg.Local.ID,
		PeerMetadata: n.cfg.Local.Metadata,
		LocalAddress: handle.LocalAddress().Bytes(),
		Capabilities: &envelope.Capabilities{
			SupportedConfigIDs: ids,
			SupportsAzimuth:    caps.SupportsAzimuth,
			SupportsElevation:  caps.SupportsElevation,
		},
	})
	c.state = StateCapabilitiesKnown
}

func (controlee) control(ctx context.Context, n *Negotiator, tid string, msg envelope.Control) {
	if msg.Configuration == nil {
		n.drop(tid, observability.DropUnexpected, nil)
		return
	}
	c, ok := n.conns[tid]
	if !ok {
		n.drop(tid, observability.DropUnknownTID, nil)
		return
	}
	if c.state != StateCapabilitiesKnown {
		observability.RecordNegotiation(roleControlee, observability.OutcomeDuplicate)
		logging.Debugf("negotiator.controlee ignore configuration tid=%q state=%s", tid, c.state)
		return
	}
	cfg := msg.Configuration
	supported := uwb.Capabilities{SupportedConfigIDs: n.cfg.SupportedConfigIDs}
	if !supported.Supports(int(cfg.ConfigID)) {
		observability.RecordNegotiation(roleControlee, observability.OutcomeIncompatible)
		logging.Debugf("negotiator.controlee incompatible tid=%q config_id=%d", tid, cfg.ConfigID)
		return
	}

	params := uwb.SessionParameters{
		ConfigID:       int(cfg.ConfigID),
		SessionID:      cfg.SessionID,
		SessionKeyInfo: cfg.SecurityInfo,
		ComplexChannel: uwb.ComplexChannel{
			Channel:       int(cfg.Channel),
			PreambleIndex: int(cfg.PreambleIndex),
		},
		PeerAddress: uwb.AddressFromBytes(msg.LocalAddress),
		UpdateRate:  uwb.UpdateRateFrequent,
	}
	endpoint := uwb.NewEndpoint(msg.PeerID, msg.PeerMetadata)
	n.endpoints.Bind(tid, endpoint)

	c.state = StateConfigured
	c.handedOff = true
	observability.RecordNegotiation(roleControlee, observability.OutcomeConfigured)
	logging.Infof("negotiator.controlee configured tid=%q peer=%q session_id=%d peer_addr=%s",
		tid, endpoint, cfg.SessionID, params.PeerAddress)
	n.emit(ctx, Found(endpoint, c.attempt, params, c.handle))
}
