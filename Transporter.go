package modbus

import (
	"errors"
	"time"
)

// Transporter is the underlying byte-stream interface and connection. This is
// used to store a TCP connection, a serial/comm port or a virtual port. The
// core never assumes framing boundaries from the transport: reads may return
// any fragment of a frame, and the transaction engine re-parses its buffer
// until a complete frame validates or the deadline passes.
//
// SetReadDeadline bounds blocking Reads. Implementations that cannot honor an
// absolute deadline (serial ports) poll in short intervals instead and report
// each empty interval as a timeout error; the caller's deadline loop provides
// the overall bound either way.
type Transporter interface {
	Write([]byte) (int, error)
	Read([]byte) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// timeoutError reports an expired read interval. It satisfies the Timeout
// method that net.Error also carries, so isTimeout recognizes both.
type timeoutError struct{}

func (timeoutError) Error() string   { return "modbus: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errDeadline error = timeoutError{}

// isTimeout returns true if err reports a read deadline expiry rather than a
// transport failure.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
