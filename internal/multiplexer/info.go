package multiplexer

import (
	"sort"
	"time"

	"github.com/danmuck/uwbranging/internal/uwb"
)

// SessionInfo is a read-only view of one active session.
type SessionInfo struct {
	Endpoint      string    `json:"endpoint"`
	Attempt       string    `json:"attempt"`
	SessionID     int32     `json:"session_id"`
	PeerAddress   string    `json:"peer_address"`
	LocalAddress  string    `json:"local_address"`
	StartedAt     time.Time `json:"started_at"`
	Samples       uint64    `json:"samples"`
	LastSampleAt  time.Time `json:"last_sample_at,omitzero"`
	LastDistance  *float64  `json:"last_distance,omitempty"`
	LastAzimuth   *float64  `json:"last_azimuth,omitempty"`
	LastElevation *float64  `json:"last_elevation,omitempty"`
}

func (i *SessionInfo) observe(p uwb.Position, at time.Time) {
	i.Samples++
	i.LastSampleAt = at
	i.LastDistance = measurement(p.Distance)
	i.LastAzimuth = measurement(p.Azimuth)
	i.LastElevation = measurement(p.Elevation)
}

func measurement(m *uwb.Measurement) *float64 {
	if m == nil {
		return nil
	}
	v := m.Value
	return &v
}

// Sessions returns a snapshot of active sessions ordered by endpoint id.
func (m *Multiplexer) Sessions() []SessionInfo {
	m.infoMu.RLock()
	defer m.infoMu.RUnlock()
	out := make([]SessionInfo, 0, len(m.info))
	for _, info := range m.info {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

func (m *Multiplexer) Session(endpointID string) (SessionInfo, bool) {
	m.infoMu.RLock()
	defer m.infoMu.RUnlock()
	info, ok := m.info[endpointID]
	return info, ok
}

func (m *Multiplexer) setInfo(info SessionInfo) {
	m.infoMu.Lock()
	m.info[info.Endpoint] = info
	m.infoMu.Unlock()
}

func (m *Multiplexer) updateInfo(endpointID string, fn func(*SessionInfo)) {
	m.infoMu.Lock()
	defer m.infoMu.Unlock()
	info, ok := m.info[endpointID]
	if !ok {
		return
	}
	fn(&info)
	m.info[endpointID] = info
}

func (m *Multiplexer) dropInfo(endpointID string) {
	m.infoMu.Lock()
	delete(m.info, endpointID)
	m.infoMu.Unlock()
}

func (m *Multiplexer) clearInfo() {
	m.infoMu.Lock()
	clear(m.info)
	m.infoMu.Unlock()
}
