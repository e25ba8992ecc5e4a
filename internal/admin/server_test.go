package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/uwbranging/internal/multiplexer"
	"github.com/danmuck/uwbranging/internal/testutil/testlog"
	"github.com/danmuck/uwbranging/internal/uwb"
)

type stubSource struct {
	local    string
	role     string
	running  bool
	sessions []multiplexer.SessionInfo
}

func (s stubSource) Local() uwb.Endpoint { return uwb.NewEndpoint(s.local, nil) }
func (s stubSource) Role() string        { return s.role }
func (s stubSource) Running() bool       { return s.running }
func (s stubSource) BoundPeers() int     { return len(s.sessions) }
func (s stubSource) Sessions() []multiplexer.SessionInfo {
	return s.sessions
}
func (s stubSource) Session(id string) (multiplexer.SessionInfo, bool) {
	for _, info := range s.sessions {
		if info.Endpoint == id {
			return info, true
		}
	}
	return multiplexer.SessionInfo{}, false
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthReadyAndMetrics(t *testing.T) {
	testlog.Start(t)
	s := New("uwbctl", "", nil, stubSource{local: "UWB1", role: "controller", running: true})
	if rec := get(t, s, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
	if rec := get(t, s, "/ready"); rec.Code != http.StatusOK {
		t.Fatalf("ready status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := get(t, s, "/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}

	stopped := New("uwbctl", "", nil, stubSource{local: "UWB1", role: "controller"})
	if rec := get(t, stopped, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for stopped scope, got %d", rec.Code)
	}
}

func TestSessionsRoutes(t *testing.T) {
	testlog.Start(t)
	ctrl := stubSource{
		local:   "UWB1",
		role:    "controller",
		running: true,
		sessions: []multiplexer.SessionInfo{
			{Endpoint: "UWB2", SessionID: 0x12345678, PeerAddress: "0304", LocalAddress: "0102"},
		},
	}
	ee := stubSource{local: "UWB2", role: "controlee", running: true}
	s := New("uwbctl", "", []string{"http://example.test"}, ctrl, ee)

	rec := get(t, s, "/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions status=%d", rec.Code)
	}
	var body struct {
		Scopes []ScopeView `json:"scopes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Scopes) != 2 || body.Scopes[0].Role != "controller" || len(body.Scopes[0].Sessions) != 1 {
		t.Fatalf("unexpected scopes: %+v", body.Scopes)
	}

	rec = get(t, s, "/sessions/UWB2")
	if rec.Code != http.StatusOK {
		t.Fatalf("session status=%d", rec.Code)
	}
	var one struct {
		Sessions []struct {
			Scope   string                  `json:"scope"`
			Session multiplexer.SessionInfo `json:"session"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(one.Sessions) != 1 || one.Sessions[0].Scope != "UWB1" || one.Sessions[0].Session.SessionID != 0x12345678 {
		t.Fatalf("unexpected session lookup: %+v", one)
	}

	if rec := get(t, s, "/sessions/nobody"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
