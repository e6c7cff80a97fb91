package modbus

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, data *DataBlock) (*Server, Transporter) {
	t.Helper()
	masterEnd, slaveEnd := VirtualPair()
	srv, err := NewServerWithTransporter(ConnectionSettings{
		Mode: ModeRTU, Host: "loopback", SlaveID: 1,
	}, slaveEnd, data)
	require.NoError(t, err)
	return srv, masterEnd
}

func readRequest(address byte, code FunctionCode, start, quantity uint16) Frame {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], start)
	binary.BigEndian.PutUint16(payload[2:4], quantity)
	return Frame{Address: address, Function: code, Payload: payload}
}

func TestServerDispatchRead(t *testing.T) {
	data := NewDataBlock(8, 8, 8, 8)
	data.holding[2] = 0xBEEF
	srv, _ := newTestServer(t, data)

	res := srv.dispatch(readRequest(1, FunctionReadHoldingRegisters, 2, 1))
	assert.Equal(t, FunctionReadHoldingRegisters, res.Function)
	assert.Equal(t, []byte{0x02, 0xBE, 0xEF}, res.Payload)
}

func TestServerDispatchExceptions(t *testing.T) {
	data := NewDataBlock(8, 8, 8, 8)
	srv, _ := newTestServer(t, data)

	tests := []struct {
		name string
		req  Frame
		code byte
	}{
		{"unsupported function",
			Frame{Address: 1, Function: 0x2B, Payload: []byte{0x0E, 0x01, 0x00}},
			ExceptionIllegalFunction},
		{"read beyond block",
			readRequest(1, FunctionReadHoldingRegisters, 6, 4),
			ExceptionIllegalDataAddress},
		{"read zero quantity",
			readRequest(1, FunctionReadCoils, 0, 0),
			ExceptionIllegalDataValue},
		{"write coil bad value",
			Frame{Address: 1, Function: FunctionWriteSingleCoil,
				Payload: []byte{0x00, 0x00, 0x12, 0x34}},
			ExceptionIllegalDataValue},
		{"write register beyond block",
			Frame{Address: 1, Function: FunctionWriteSingleRegister,
				Payload: []byte{0x00, 0x08, 0x00, 0x01}},
			ExceptionIllegalDataAddress},
		{"write multiple count mismatch",
			Frame{Address: 1, Function: FunctionWriteMultipleRegisters,
				Payload: []byte{0x00, 0x00, 0x00, 0x02, 0x02, 0xAA, 0xBB}},
			ExceptionIllegalDataValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := srv.dispatch(tt.req)
			assert.Equal(t, tt.req.Function|exceptionFlag, res.Function)
			assert.Equal(t, []byte{tt.code}, res.Payload)
		})
	}
}

func TestServerDispatchMaskWrite(t *testing.T) {
	data := NewDataBlock(0, 0, 8, 0)
	data.holding[4] = 0x0012
	srv, _ := newTestServer(t, data)

	req := Frame{Address: 1, Function: FunctionMaskWriteRegister,
		Payload: []byte{0x00, 0x04, 0x00, 0xF2, 0x00, 0x25}}
	res := srv.dispatch(req)
	assert.Equal(t, FunctionMaskWriteRegister, res.Function)
	assert.Equal(t, req.Payload, res.Payload)
	assert.Equal(t, uint16(0x0017), data.holding[4])
}

func TestServerOnChange(t *testing.T) {
	data := NewDataBlock(8, 0, 8, 0)
	srv, _ := newTestServer(t, data)

	type change struct {
		code              FunctionCode
		address, quantity uint16
	}
	var changes []change
	data.OnChange(func(code FunctionCode, address, quantity uint16) {
		changes = append(changes, change{code, address, quantity})
	})

	srv.dispatch(Frame{Address: 1, Function: FunctionWriteSingleCoil,
		Payload: []byte{0x00, 0x03, 0xFF, 0x00}})
	srv.dispatch(Frame{Address: 1, Function: FunctionWriteMultipleRegisters,
		Payload: []byte{0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x00, 0x0B}})
	// Rejected writes must not notify.
	srv.dispatch(Frame{Address: 1, Function: FunctionWriteSingleRegister,
		Payload: []byte{0x00, 0x09, 0x00, 0x01}})

	require.Len(t, changes, 2)
	assert.Equal(t, change{FunctionWriteSingleCoil, 3, 1}, changes[0])
	assert.Equal(t, change{FunctionWriteMultipleRegisters, 1, 2}, changes[1])
}

func TestServerConsumeResync(t *testing.T) {
	data := NewDataBlock(0, 0, 8, 0)
	srv, masterEnd := newTestServer(t, data)

	q, err := ReadHoldingRegisters(1, 0, 1)
	require.NoError(t, err)
	adu, err := srv.packager.EncodeRequest(q)
	require.NoError(t, err)

	// Line noise ahead of the frame is discarded byte by byte until the
	// request parses.
	buf := append([]byte{0xFF, 0xFF}, adu...)
	rest := srv.consume(buf)
	assert.Empty(t, rest)

	masterEnd.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	res := make([]byte, MaxRTUSize)
	n, err := masterEnd.Read(res)
	require.NoError(t, err)
	f, _, err := srv.packager.DecodeResponse(res[:n])
	require.NoError(t, err)
	assert.Equal(t, FunctionReadHoldingRegisters, f.Function)
	assert.Equal(t, []byte{0x02, 0x00, 0x00}, f.Payload)
}

func TestServerConsumeKeepsPartialFrame(t *testing.T) {
	data := NewDataBlock(0, 0, 8, 0)
	srv, _ := newTestServer(t, data)

	q, err := ReadHoldingRegisters(1, 0, 1)
	require.NoError(t, err)
	adu, err := srv.packager.EncodeRequest(q)
	require.NoError(t, err)

	rest := srv.consume(adu[:5])
	assert.Equal(t, adu[:5], rest)
}

func TestServerIgnoresOtherUnits(t *testing.T) {
	data := NewDataBlock(0, 0, 8, 0)
	srv, masterEnd := newTestServer(t, data)

	srv.answer(readRequest(9, FunctionReadHoldingRegisters, 0, 1))

	masterEnd.SetReadDeadline(time.Now().Add(30 * time.Millisecond))
	buf := make([]byte, MaxRTUSize)
	_, err := masterEnd.Read(buf)
	assert.True(t, isTimeout(err))
}
