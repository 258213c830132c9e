package coordinator

import "github.com/google/uuid"

// portBuffer is the per-tab send queue depth. A tab that falls this far
// behind is dropped rather than allowed to block delivery to the others.
const portBuffer = 64

// Port is one tab's link to the coordinator. The coordinator is the only
// sender on the message channel; the owning connection (or test) is the only
// receiver. Closing of the channel is the destruction signal: a Port is
// never reused after that.
type Port struct {
	ID   string
	send chan []byte
}

// NewPort creates an unregistered port.
func NewPort() *Port {
	return &Port{
		ID:   uuid.New().String(),
		send: make(chan []byte, portBuffer),
	}
}

// Messages returns the channel broadcasts arrive on. It is closed when the
// coordinator drops the port.
func (p *Port) Messages() <-chan []byte {
	return p.send
}

// deliver enqueues one message without blocking. A false return means the
// port's buffer is full and the port should be dropped. Only called from the
// coordinator loop.
func (p *Port) deliver(msg []byte) bool {
	select {
	case p.send <- msg:
		return true
	default:
		return false
	}
}
