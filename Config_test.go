package modbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	cs := ConnectionSettings{Mode: ModeRTU, Host: "/dev/ttyS0"}
	require.NoError(t, cs.Validate())

	assert.Equal(t, DefaultBaud, cs.Baud)
	assert.Equal(t, byte(DefaultDataBits), cs.DataBits)
	assert.Equal(t, byte(DefaultParity), cs.Parity)
	assert.Equal(t, byte(DefaultStopBits), cs.StopBits)
	assert.Equal(t, DefaultTimeout, cs.Timeout)
	assert.Equal(t, DefaultRetries, cs.MaxRetries)
	assert.Equal(t, byte(DefaultSlaveID), cs.SlaveID)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		cs   ConnectionSettings
	}{
		{"invalid mode", ConnectionSettings{Mode: Mode(9), Host: "h"}},
		{"no host", ConnectionSettings{Mode: ModeTCP}},
		{"invalid baud", ConnectionSettings{Mode: ModeRTU, Host: "h", Baud: 12345}},
		{"invalid data bits", ConnectionSettings{Mode: ModeRTU, Host: "h", DataBits: 9}},
		{"invalid parity", ConnectionSettings{Mode: ModeRTU, Host: "h", Parity: 'X'}},
		{"invalid stop bits", ConnectionSettings{Mode: ModeRTU, Host: "h", StopBits: 3}},
		{"negative timeout", ConnectionSettings{Mode: ModeTCP, Host: "h", Timeout: -time.Second}},
		{"retries over limit", ConnectionSettings{Mode: ModeTCP, Host: "h", MaxRetries: 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cs.Validate())
		})
	}
}

func TestValidateRetries(t *testing.T) {
	cs := ConnectionSettings{Mode: ModeTCP, Host: "h", MaxRetries: -1}
	require.NoError(t, cs.Validate())
	assert.Equal(t, 0, cs.MaxRetries)

	cs = ConnectionSettings{Mode: ModeTCP, Host: "h", MaxRetries: maxRetryLimit}
	require.NoError(t, cs.Validate())
	assert.Equal(t, maxRetryLimit, cs.MaxRetries)
}

func TestValidateTCPIgnoresSerialSettings(t *testing.T) {
	// Serial line parameters are not validated for TCP connections.
	cs := ConnectionSettings{Mode: ModeTCP, Host: "localhost:502", Baud: 12345}
	require.NoError(t, cs.Validate())
	assert.Equal(t, 12345, cs.Baud)
}
