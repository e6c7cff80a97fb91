package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterBytes(t *testing.T) {
	regs := []uint16{0x1234, 0xABCD, 0x0001}
	data := BytesFromRegisters(regs)
	assert.Equal(t, []byte{0x12, 0x34, 0xAB, 0xCD, 0x00, 0x01}, data)
	assert.Equal(t, regs, RegistersFromBytes(data))
}

func TestCoilPacking(t *testing.T) {
	values := []bool{true, false, true, true, false, false, false, false, true}
	data := PackCoils(values)
	assert.Equal(t, []byte{0x0D, 0x01}, data)
	assert.Equal(t, values, UnpackCoils(data, 9))
}

func TestSplitCombineUint32(t *testing.T) {
	lo, hi := SplitUint32(0xDEADBEEF, LittleEndianWords)
	assert.Equal(t, uint16(0xBEEF), lo)
	assert.Equal(t, uint16(0xDEAD), hi)
	assert.Equal(t, uint32(0xDEADBEEF), CombineUint32(lo, hi, LittleEndianWords))

	hi, lo = SplitUint32(0xDEADBEEF, BigEndianWords)
	assert.Equal(t, uint16(0xDEAD), hi)
	assert.Equal(t, uint16(0xBEEF), lo)
	assert.Equal(t, uint32(0xDEADBEEF), CombineUint32(hi, lo, BigEndianWords))
}

func TestFloatConversions(t *testing.T) {
	v := FloatToUint16(-2.5, 100)
	assert.Equal(t, uint16(0xFF06), v) // -250 in two's complement

	f, err := FloatFromUint16(v, 100)
	require.NoError(t, err)
	assert.InDelta(t, -2.5, f, 1e-9)

	_, err = FloatFromUint16(v, 0)
	assert.Error(t, err)

	v32 := FloatToUint32(-1234.56, 100)
	f, err = FloatFromUint32(v32, 100)
	require.NoError(t, err)
	assert.InDelta(t, -1234.56, f, 1e-9)
}
