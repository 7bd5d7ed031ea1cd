package router

// MaxPayloadBytes bounds packet payloads. Payloads are compact delimited or
// INI-style text; anything longer is truncated at enqueue time, never
// rejected.
const MaxPayloadBytes = 1024

// Packet is the unit of messaging. Immutable once enqueued; packets are
// copied by value through queues so no two components share mutable state.
//
// Endpoint follows the "vendor.module.endpoint" convention, e.g.
// "gridos.power.status".
type Packet struct {
	To       Address
	From     Address
	Endpoint string
	Payload  string
	Flags    int
}

// clampPayload enforces MaxPayloadBytes.
func clampPayload(p Packet) Packet {
	if len(p.Payload) > MaxPayloadBytes {
		p.Payload = p.Payload[:MaxPayloadBytes]
	}
	return p
}
