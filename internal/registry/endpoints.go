package registry

import (
	"sort"
	"sync"

	"github.com/danmuck/uwbranging/internal/uwb"
)

// Endpoints maps transport ids to logical endpoints and back. Writes come
// from one owner loop; reads may come from any goroutine.
type Endpoints struct {
	mu      sync.RWMutex
	byTID   map[string]uwb.Endpoint
	reverse map[string][]string
}

func NewEndpoints() *Endpoints {
	return &Endpoints{
		byTID:   make(map[string]uwb.Endpoint),
		reverse: make(map[string][]string),
	}
}

// Bind maps tid to endpoint, replacing any earlier binding for tid. The most
// recent Bind owns the reverse mapping for the endpoint.
func (r *Endpoints) Bind(tid string, endpoint uwb.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byTID[tid]; ok {
		r.dropReverseLocked(prev.Key(), tid)
	}
	r.byTID[tid] = uwb.NewEndpoint(endpoint.ID, endpoint.Metadata)
	key := endpoint.Key()
	r.reverse[key] = append(r.reverse[key], tid)
}

func (r *Endpoints) Lookup(tid string) (uwb.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byTID[tid]
	return e, ok
}

// TransportID returns the transport id most recently bound to endpoint.
func (r *Endpoints) TransportID(endpoint uwb.Endpoint) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tids := r.reverse[endpoint.Key()]
	if len(tids) == 0 {
		return "", false
	}
	return tids[len(tids)-1], true
}

// Unbind removes tid and returns the endpoint it was bound to.
func (r *Endpoints) Unbind(tid string) (uwb.Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byTID[tid]
	if !ok {
		return uwb.Endpoint{}, false
	}
	delete(r.byTID, tid)
	r.dropReverseLocked(e.Key(), tid)
	return e, true
}

func (r *Endpoints) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTID)
}

// Snapshot returns a copy of the tid bindings, keyed by tid.
func (r *Endpoints) Snapshot() map[string]uwb.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]uwb.Endpoint, len(r.byTID))
	for tid, e := range r.byTID {
		out[tid] = e
	}
	return out
}

// TransportIDs returns the bound transport ids in sorted order.
func (r *Endpoints) TransportIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byTID))
	for tid := range r.byTID {
		out = append(out, tid)
	}
	sort.Strings(out)
	return out
}

func (r *Endpoints) dropReverseLocked(key, tid string) {
	tids := r.reverse[key]
	for i, v := range tids {
		if v == tid {
			tids = append(tids[:i], tids[i+1:]...)
			break
		}
	}
	if len(tids) == 0 {
		delete(r.reverse, key)
		return
	}
	r.reverse[key] = tids
}
