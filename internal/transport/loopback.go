// Package transport implements the external transport adapter boundary: a
// zero-dependency in-memory loopback for tests and single-process runs, and
// a SQLite store-and-forward adapter for multi-process soak setups. Both are
// best-effort; the kernel adds no reliability layer on top.
package transport

import (
	"gridos/internal/queue"
	"gridos/internal/router"
)

// Loopback is one end of an in-memory transport pair. Sends from one end are
// delivered into the peer's inbound ring when the peer listens on the same
// tag (an unconfigured peer accepts everything). Inbound rings are bounded
// with drop-oldest semantics, like every queue in the system.
type Loopback struct {
	tag  string
	in   *queue.Ring[router.Packet]
	peer *Loopback
}

// NewPair returns two cross-connected loopback ends, each buffering up to
// capacity inbound packets.
func NewPair(capacity int) (*Loopback, *Loopback) {
	a := &Loopback{in: queue.NewRing[router.Packet](capacity)}
	b := &Loopback{in: queue.NewRing[router.Packet](capacity)}
	a.peer = b
	b.peer = a
	return a, b
}

// Configure sets the tag this end listens on.
func (l *Loopback) Configure(tag string) error {
	l.tag = tag
	return nil
}

// Send delivers to the peer's inbound ring if the peer's tag matches.
// Non-matching packets vanish, as they would on a real broadcast channel
// nobody listens to.
func (l *Loopback) Send(pkt router.Packet) error {
	if l.peer.tag == "" || l.peer.tag == l.tag {
		l.peer.in.Push(pkt)
	}
	return nil
}

// Receive pops one pending inbound packet.
func (l *Loopback) Receive() (router.Packet, bool) {
	return l.in.Pop()
}

// Pending returns the number of undelivered inbound packets.
func (l *Loopback) Pending() int { return l.in.Len() }

// Dropped returns the number of inbound packets lost to overflow.
func (l *Loopback) Dropped() uint64 { return l.in.Dropped() }
