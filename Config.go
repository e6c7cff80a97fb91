package modbus

import (
	"fmt"
	"time"
)

// Connection setting defaults. Validate applies them to unset fields.
const (
	DefaultBaud     = 9600
	DefaultDataBits = 8
	DefaultParity   = 'N'
	DefaultStopBits = 1
	DefaultTimeout  = 1 * time.Second
	DefaultRetries  = 3
	DefaultSlaveID  = 1
)

// maxRetryLimit is the MaxRetries ceiling.
const maxRetryLimit = 10

// validBauds lists the supported serial line rates.
var validBauds = map[int]bool{
	300: true, 600: true, 1200: true, 2400: true, 4800: true,
	9600: true, 14400: true, 19200: true, 38400: true, 57600: true,
	115200: true,
}

// ConnectionSettings holds all connection settings. For ModeTCP the Host is
// the FQDN or IP address AND the port number. For ModeRTU and ModeASCII the
// Host string holds the full path to the serial device (Linux) or the name of
// the COM port (Windows), and the serial line parameters apply. Timeout is
// the per-transaction response deadline and MaxRetries the number of times a
// timed-out transaction is re-sent before the caller receives ErrTimeout.
// SlaveID is the default unit address used by the typed ClientHandle
// operations.
type ConnectionSettings struct {
	Mode
	Host     string
	Baud     int
	DataBits byte
	Parity   byte // 'N', 'E' or 'O'
	StopBits byte
	Timeout  time.Duration

	// MaxRetries of 0 selects DefaultRetries; use a negative value to
	// disable retries entirely.
	MaxRetries int

	SlaveID byte
}

// Validate applies defaults to unset fields and rejects out-of-range values.
// The client and server call it before opening the transport.
func (cs *ConnectionSettings) Validate() error {
	if _, ok := ModeNames[cs.Mode]; !ok {
		return fmt.Errorf("invalid Mode: %v", byte(cs.Mode))
	}
	if cs.Host == "" {
		return fmt.Errorf("no Host specified")
	}

	if cs.Mode == ModeRTU || cs.Mode == ModeASCII {
		if cs.Baud == 0 {
			cs.Baud = DefaultBaud
		}
		if !validBauds[cs.Baud] {
			return fmt.Errorf("invalid Baud: %v", cs.Baud)
		}
		if cs.DataBits == 0 {
			cs.DataBits = DefaultDataBits
		}
		if cs.DataBits < 5 || cs.DataBits > 8 {
			return fmt.Errorf("invalid DataBits: %v", cs.DataBits)
		}
		if cs.Parity == 0 {
			cs.Parity = DefaultParity
		}
		if cs.Parity != 'N' && cs.Parity != 'E' && cs.Parity != 'O' {
			return fmt.Errorf("invalid Parity: %q", cs.Parity)
		}
		if cs.StopBits == 0 {
			cs.StopBits = DefaultStopBits
		}
		if cs.StopBits != 1 && cs.StopBits != 2 {
			return fmt.Errorf("invalid StopBits: %v", cs.StopBits)
		}
	}

	if cs.Timeout == 0 {
		cs.Timeout = DefaultTimeout
	}
	if cs.Timeout < 0 {
		return fmt.Errorf("invalid Timeout: %v", cs.Timeout)
	}

	switch {
	case cs.MaxRetries == 0:
		cs.MaxRetries = DefaultRetries
	case cs.MaxRetries < 0:
		cs.MaxRetries = 0
	case cs.MaxRetries > maxRetryLimit:
		return fmt.Errorf("MaxRetries %v out of range [0, %v]",
			cs.MaxRetries, maxRetryLimit)
	}

	if cs.SlaveID == 0 {
		cs.SlaveID = DefaultSlaveID
	}
	return nil
}
