package registry

import (
	"errors"
	"fmt"

	"github.com/danmuck/uwbranging/internal/uwb"
)

var (
	ErrLocalCollision = errors.New("registry: address belongs to the local device")
	ErrAddressInUse   = errors.New("registry: address bound to another endpoint")
	ErrZeroAddress    = errors.New("registry: empty address")
)

// Addresses resolves ranging addresses to endpoints. It is not safe for
// concurrent use; the multiplexer loop owns it.
type Addresses struct {
	local  map[uwb.Address]struct{}
	remote map[uwb.Address]uwb.Endpoint
}

func NewAddresses() *Addresses {
	return &Addresses{
		local:  make(map[uwb.Address]struct{}),
		remote: make(map[uwb.Address]uwb.Endpoint),
	}
}

// AddLocal marks addr as the local device. An address already bound to a
// remote endpoint is refused, since Resolve would shadow that peer.
func (a *Addresses) AddLocal(addr uwb.Address) error {
	if addr.IsZero() {
		return ErrZeroAddress
	}
	if prev, ok := a.remote[addr]; ok {
		return fmt.Errorf("%w: %s held by %s", ErrAddressInUse, addr, prev)
	}
	a.local[addr] = struct{}{}
	return nil
}

func (a *Addresses) IsLocal(addr uwb.Address) bool {
	_, ok := a.local[addr]
	return ok
}

// Put binds a remote address. Rebinding to the same endpoint is a no-op.
func (a *Addresses) Put(addr uwb.Address, endpoint uwb.Endpoint) error {
	if addr.IsZero() {
		return ErrZeroAddress
	}
	if a.IsLocal(addr) {
		return fmt.Errorf("%w: %s", ErrLocalCollision, addr)
	}
	if prev, ok := a.remote[addr]; ok && !prev.Equal(endpoint) {
		return fmt.Errorf("%w: %s held by %s", ErrAddressInUse, addr, prev)
	}
	a.remote[addr] = endpoint
	return nil
}

// Resolve checks local addresses first and reports them as local.
func (a *Addresses) Resolve(addr uwb.Address, local uwb.Endpoint) (uwb.Endpoint, bool) {
	if a.IsLocal(addr) {
		return local, true
	}
	e, ok := a.remote[addr]
	return e, ok
}

func (a *Addresses) Remove(addr uwb.Address) {
	delete(a.remote, addr)
}

func (a *Addresses) RemoveLocal(addr uwb.Address) {
	delete(a.local, addr)
}

func (a *Addresses) RemoteLen() int {
	return len(a.remote)
}

func (a *Addresses) Reset() {
	clear(a.local)
	clear(a.remote)
}
