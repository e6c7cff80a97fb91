package modbus

import (
	"io"
	"sync"
	"time"
)

// VirtualPair returns two Transporters connected back to back in memory,
// simulating a serial cable between a master and a slave. Bytes written on
// one end become readable on the other, possibly split across several Reads.
// Both ends support read deadlines. Use it to run a Client against a Server
// without hardware.
func VirtualPair() (Transporter, Transporter) {
	a := newVirtualPort()
	b := newVirtualPort()
	a.peer, b.peer = b, a
	return a, b
}

// virtualPortBacklog bounds the number of undelivered writes per direction.
const virtualPortBacklog = 64

type virtualPort struct {
	peer *virtualPort
	rx   chan []byte

	mu       sync.Mutex
	pending  []byte
	deadline time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

func newVirtualPort() *virtualPort {
	return &virtualPort{
		rx:     make(chan []byte, virtualPortBacklog),
		closed: make(chan struct{}),
	}
}

func (v *virtualPort) Write(p []byte) (int, error) {
	data := make([]byte, len(p))
	copy(data, p)
	select {
	case <-v.closed:
		return 0, io.ErrClosedPipe
	case <-v.peer.closed:
		return 0, io.ErrClosedPipe
	case v.peer.rx <- data:
		return len(p), nil
	}
}

func (v *virtualPort) Read(p []byte) (int, error) {
	v.mu.Lock()
	if len(v.pending) > 0 {
		n := copy(p, v.pending)
		v.pending = v.pending[n:]
		v.mu.Unlock()
		return n, nil
	}
	deadline := v.deadline
	v.mu.Unlock()

	// Deliver buffered data even after Close.
	select {
	case data := <-v.rx:
		return v.deliver(p, data), nil
	default:
	}

	var expire <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return 0, errDeadline
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case data := <-v.rx:
		return v.deliver(p, data), nil
	case <-expire:
		return 0, errDeadline
	case <-v.closed:
		return 0, io.EOF
	case <-v.peer.closed:
		return 0, io.EOF
	}
}

func (v *virtualPort) deliver(p, data []byte) int {
	n := copy(p, data)
	if n < len(data) {
		v.mu.Lock()
		v.pending = append(v.pending, data[n:]...)
		v.mu.Unlock()
	}
	return n
}

func (v *virtualPort) SetReadDeadline(t time.Time) error {
	v.mu.Lock()
	v.deadline = t
	v.mu.Unlock()
	return nil
}

func (v *virtualPort) Close() error {
	v.closeOnce.Do(func() { close(v.closed) })
	return nil
}
