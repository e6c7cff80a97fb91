package modbus

import (
	"errors"
	"io"
	"time"

	"github.com/AdamSLevy/serial"
)

// serialPollInterval is the ReadTimeout configured on the port. The port
// cannot honor an absolute deadline, so Reads poll at this interval and the
// transaction engine's deadline loop provides the overall bound.
const serialPollInterval = 20 * time.Millisecond

// serialPort adapts a serial/comm port to the Transporter interface. Used by
// both the ASCIIPackager and the RTUPackager framing modes.
type serialPort struct {
	*serial.Port
}

// newSerialTransporter opens the serial device named by c.Host with the
// configured line parameters.
func newSerialTransporter(c ConnectionSettings) (Transporter, error) {
	conf := &serial.Config{
		Name:        c.Host,
		Baud:        c.Baud,
		Size:        c.DataBits,
		Parity:      serial.Parity(c.Parity),
		StopBits:    serial.StopBits(c.StopBits),
		ReadTimeout: serialPollInterval,
	}
	p, err := serial.OpenPort(conf)
	if err != nil {
		return nil, err
	}
	return &serialPort{Port: p}, nil
}

// Read reads available bytes from the port. An empty poll interval is
// reported as a timeout error so the caller can distinguish silence from a
// port failure.
func (s *serialPort) Read(p []byte) (int, error) {
	n, err := s.Port.Read(p)
	if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
		return 0, errDeadline
	}
	return n, err
}

// SetReadDeadline is a no-op for serial ports; the port polls at
// serialPollInterval instead.
func (s *serialPort) SetReadDeadline(time.Time) error { return nil }
