package modbus

import (
	"fmt"
	"math"
)

// ByteOrder selects the word order used when a 32-bit value spans two
// 16-bit registers.
type ByteOrder byte

// The available word orders. Little-endian word order (low word in the lower
// register) is the common convention for the devices this library targets.
const (
	LittleEndianWords ByteOrder = iota
	BigEndianWords
)

// RegistersFromBytes unpacks big-endian register bytes, as carried in read
// response payloads, into 16-bit register values.
func RegistersFromBytes(data []byte) []uint16 {
	regs := make([]uint16, len(data)/2)
	for i := range regs {
		regs[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return regs
}

// BytesFromRegisters packs 16-bit register values into the big-endian byte
// layout carried in write request payloads.
func BytesFromRegisters(regs []uint16) []byte {
	data := make([]byte, 2*len(regs))
	for i, r := range regs {
		data[2*i] = byte(r >> 8)
		data[2*i+1] = byte(r)
	}
	return data
}

// UnpackCoils unpacks quantity coil values from their wire layout: eight
// coils per byte, least significant bit first.
func UnpackCoils(data []byte, quantity uint16) []bool {
	values := make([]bool, 0, quantity)
	for i := 0; i < int(quantity); i++ {
		if i/8 >= len(data) {
			break
		}
		values = append(values, data[i/8]&(1<<(i%8)) != 0)
	}
	return values
}

// PackCoils packs coil values into their wire layout: eight coils per byte,
// least significant bit first, the last byte zero-padded.
func PackCoils(values []bool) []byte {
	data := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			data[i/8] |= 1 << (i % 8)
		}
	}
	return data
}

// SplitUint32 splits a 32-bit value into two 16-bit register values in the
// given word order.
func SplitUint32(v uint32, order ByteOrder) (uint16, uint16) {
	if order == BigEndianWords {
		return uint16(v >> 16), uint16(v)
	}
	return uint16(v), uint16(v >> 16)
}

// CombineUint32 combines two 16-bit register values into a 32-bit value in
// the given word order.
func CombineUint32(a, b uint16, order ByteOrder) uint32 {
	if order == BigEndianWords {
		return uint32(a)<<16 | uint32(b)
	}
	return uint32(b)<<16 | uint32(a)
}

// FloatToUint16 scales f by factor and returns the two's-complement register
// representation of the rounded result. Devices without floating point
// support commonly expose fixed-point values this way.
func FloatToUint16(f, factor float64) uint16 {
	return uint16(int16(math.Round(f * factor)))
}

// FloatFromUint16 interprets a register value as a two's-complement
// fixed-point number scaled by factor.
func FloatFromUint16(v uint16, factor float64) (float64, error) {
	if factor == 0 {
		return 0, fmt.Errorf("factor cannot be zero")
	}
	return float64(int16(v)) / factor, nil
}

// FloatToUint32 scales f by factor and returns the two's-complement 32-bit
// representation of the rounded result.
func FloatToUint32(f, factor float64) uint32 {
	return uint32(int32(math.Round(f * factor)))
}

// FloatFromUint32 interprets a 32-bit value as a two's-complement fixed-point
// number scaled by factor.
func FloatFromUint32(v uint32, factor float64) (float64, error) {
	if factor == 0 {
		return 0, fmt.Errorf("factor cannot be zero")
	}
	return float64(int32(v)) / factor, nil
}
