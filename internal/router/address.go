// Package router implements the unified message plane: the address/packet
// model, endpoint subscriptions with multicast fan-out, and the budget-aware
// pump that bridges the local queue with an external transport adapter.
package router

import "fmt"

// Scope classifies how far a message travels. The router is the only
// component that interprets scope: Host packets are dispatched in-process and
// never forwarded; LAN and WAN packets go to the external transport.
type Scope uint8

const (
	ScopeHost Scope = iota
	ScopeLAN
	ScopeWAN
)

func (s Scope) String() string {
	switch s {
	case ScopeHost:
		return "host"
	case ScopeLAN:
		return "lan"
	case ScopeWAN:
		return "wan"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// Address identifies a message source or destination. Immutable value type;
// comparable with ==.
type Address struct {
	Scope Scope
	ID    uint64
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Scope, a.ID)
}

// Local returns a host-scoped address.
func Local(id uint64) Address { return Address{Scope: ScopeHost, ID: id} }

// LAN returns a LAN-scoped address.
func LAN(id uint64) Address { return Address{Scope: ScopeLAN, ID: id} }

// WAN returns a WAN-scoped address.
func WAN(id uint64) Address { return Address{Scope: ScopeWAN, ID: id} }
