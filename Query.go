package modbus

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Query contains the raw information for a single Modbus query. Data is
// interpreted per FunctionCode; the typed constructors below populate it
// correctly.
type Query struct {
	SlaveID      byte
	FunctionCode FunctionCode
	Address      uint16
	Quantity     uint16
	Data         []byte
}

// ReadCoils returns a Query for reading quantity coils starting at address.
func ReadCoils(slaveID byte, address, quantity uint16) (Query, error) {
	q := Query{
		SlaveID:      slaveID,
		FunctionCode: FunctionReadCoils,
		Address:      address,
		Quantity:     quantity,
	}
	return q, q.Validate()
}

// ReadDiscreteInputs returns a Query for reading quantity discrete inputs
// starting at address.
func ReadDiscreteInputs(slaveID byte, address, quantity uint16) (Query, error) {
	q := Query{
		SlaveID:      slaveID,
		FunctionCode: FunctionReadDiscreteInputs,
		Address:      address,
		Quantity:     quantity,
	}
	return q, q.Validate()
}

// ReadHoldingRegisters returns a Query for reading quantity holding registers
// starting at address.
func ReadHoldingRegisters(slaveID byte, address, quantity uint16) (Query, error) {
	q := Query{
		SlaveID:      slaveID,
		FunctionCode: FunctionReadHoldingRegisters,
		Address:      address,
		Quantity:     quantity,
	}
	return q, q.Validate()
}

// ReadInputRegisters returns a Query for reading quantity input registers
// starting at address.
func ReadInputRegisters(slaveID byte, address, quantity uint16) (Query, error) {
	q := Query{
		SlaveID:      slaveID,
		FunctionCode: FunctionReadInputRegisters,
		Address:      address,
		Quantity:     quantity,
	}
	return q, q.Validate()
}

// WriteSingleCoil returns a Query setting the coil at address to on.
func WriteSingleCoil(slaveID byte, address uint16, on bool) (Query, error) {
	q := Query{
		SlaveID:      slaveID,
		FunctionCode: FunctionWriteSingleCoil,
		Address:      address,
		Data:         []byte{0x00, 0x00},
	}
	if on {
		q.Data[0] = 0xFF
	}
	return q, q.Validate()
}

// WriteSingleRegister returns a Query setting the holding register at address
// to value.
func WriteSingleRegister(slaveID byte, address, value uint16) (Query, error) {
	q := Query{
		SlaveID:      slaveID,
		FunctionCode: FunctionWriteSingleRegister,
		Address:      address,
		Data:         []byte{byte(value >> 8), byte(value)},
	}
	return q, q.Validate()
}

// WriteMultipleCoils returns a Query setting quantity coils starting at
// address. Data holds the packed coil values, eight per byte, LSB first.
func WriteMultipleCoils(slaveID byte, address, quantity uint16, data []byte) (Query, error) {
	q := Query{
		SlaveID:      slaveID,
		FunctionCode: FunctionWriteMultipleCoils,
		Address:      address,
		Quantity:     quantity,
		Data:         data,
	}
	return q, q.Validate()
}

// WriteMultipleRegisters returns a Query setting quantity holding registers
// starting at address. Data holds the big-endian register values.
func WriteMultipleRegisters(slaveID byte, address, quantity uint16, data []byte) (Query, error) {
	q := Query{
		SlaveID:      slaveID,
		FunctionCode: FunctionWriteMultipleRegisters,
		Address:      address,
		Quantity:     quantity,
		Data:         data,
	}
	return q, q.Validate()
}

// MaskWriteRegister returns a Query modifying the holding register at address
// using the given AND and OR masks.
func MaskWriteRegister(slaveID byte, address, andMask, orMask uint16) (Query, error) {
	q := Query{
		SlaveID:      slaveID,
		FunctionCode: FunctionMaskWriteRegister,
		Address:      address,
		Data: []byte{
			byte(andMask >> 8), byte(andMask),
			byte(orMask >> 8), byte(orMask),
		},
	}
	return q, q.Validate()
}

// Validate checks that the Query is well constructed with a supported
// FunctionCode and in-range quantity and data.
func (q Query) Validate() error {
	switch q.FunctionCode {
	case FunctionReadCoils, FunctionReadDiscreteInputs:
		if q.Quantity == 0 || q.Quantity > 2000 {
			return fmt.Errorf("quantity out of range: %v", q.Quantity)
		}
	case FunctionReadHoldingRegisters, FunctionReadInputRegisters:
		if q.Quantity == 0 || q.Quantity > 125 {
			return fmt.Errorf("quantity out of range: %v", q.Quantity)
		}
	case FunctionWriteSingleCoil:
		if q.Quantity != 0 {
			return fmt.Errorf("quantity should be 0 but it is: %v", q.Quantity)
		}
		if len(q.Data) != 2 {
			return fmt.Errorf("len(Data) should be 2 but it is: %v", len(q.Data))
		}
		if (q.Data[0] != 0xFF && q.Data[0] != 0x00) || q.Data[1] != 0x00 {
			return fmt.Errorf("data should be 0xFF00 or 0x0000 but it is: "+
				"0x%02X%02X", q.Data[0], q.Data[1])
		}
	case FunctionWriteSingleRegister:
		if q.Quantity != 0 {
			return fmt.Errorf("quantity should be 0 but it is: %v", q.Quantity)
		}
		if len(q.Data) != 2 {
			return fmt.Errorf("len(Data) should be 2 but it is: %v", len(q.Data))
		}
	case FunctionWriteMultipleCoils:
		if q.Quantity == 0 || q.Quantity > 2000 {
			return fmt.Errorf("quantity out of range: %v", q.Quantity)
		}
		expectedLen := int(q.Quantity+7) / 8
		if len(q.Data) != expectedLen {
			return fmt.Errorf("len(Data) should be %v but it is: %v",
				expectedLen, len(q.Data))
		}
	case FunctionWriteMultipleRegisters:
		if q.Quantity == 0 || q.Quantity > 123 {
			return fmt.Errorf("quantity out of range: %v", q.Quantity)
		}
		if len(q.Data) != int(2*q.Quantity) {
			return fmt.Errorf("len(Data) should be %v but it is: %v",
				2*q.Quantity, len(q.Data))
		}
	case FunctionMaskWriteRegister:
		if q.Quantity != 0 {
			return fmt.Errorf("quantity should be 0 but it is: %v", q.Quantity)
		}
		if len(q.Data) != 4 {
			return fmt.Errorf("len(Data) should be 4 but it is: %v", len(q.Data))
		}
	default:
		return fmt.Errorf("invalid FunctionCode: 0x%02X", byte(q.FunctionCode))
	}
	return nil
}

// pdu builds the request frame payload for the Query: the application data
// that follows the unit address and function code on the wire.
func (q Query) pdu() []byte {
	var data []byte
	switch q.FunctionCode {
	case FunctionReadCoils, FunctionReadDiscreteInputs,
		FunctionReadHoldingRegisters, FunctionReadInputRegisters:
		data = make([]byte, 4)
		binary.BigEndian.PutUint16(data[0:2], q.Address)
		binary.BigEndian.PutUint16(data[2:4], q.Quantity)
	case FunctionWriteSingleCoil, FunctionWriteSingleRegister,
		FunctionMaskWriteRegister:
		data = make([]byte, 2, 2+len(q.Data))
		binary.BigEndian.PutUint16(data[0:2], q.Address)
		data = append(data, q.Data...)
	case FunctionWriteMultipleCoils, FunctionWriteMultipleRegisters:
		data = make([]byte, 5, 5+len(q.Data))
		binary.BigEndian.PutUint16(data[0:2], q.Address)
		binary.BigEndian.PutUint16(data[2:4], q.Quantity)
		data[4] = byte(len(q.Data))
		data = append(data, q.Data...)
	}
	return data
}

// requestFrame builds the full request Frame for the Query.
func (q Query) requestFrame() Frame {
	return Frame{
		Address:  q.SlaveID,
		Function: q.FunctionCode,
		Payload:  q.pdu(),
	}
}

// checkResponse validates a decoded response frame against the Query and
// extracts the response data: the register or coil bytes for read functions,
// the echoed payload for write functions. Exception responses are returned
// as an *ExceptionError.
func (q Query) checkResponse(f Frame) ([]byte, error) {
	if f.Address != q.SlaveID {
		return nil, fmt.Errorf("%w: got %d, want %d",
			ErrSlaveMismatch, f.Address, q.SlaveID)
	}
	if exc, ok := f.exception(); ok {
		if exc.Function != q.FunctionCode {
			return nil, fmt.Errorf("%w: exception to 0x%02X, want 0x%02X",
				ErrFunctionMismatch, byte(exc.Function), byte(q.FunctionCode))
		}
		return nil, exc
	}
	if f.Function != q.FunctionCode {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X",
			ErrFunctionMismatch, byte(f.Function), byte(q.FunctionCode))
	}

	if IsReadFunction(q.FunctionCode) {
		expected := int(2 * q.Quantity)
		if q.FunctionCode == FunctionReadCoils ||
			q.FunctionCode == FunctionReadDiscreteInputs {
			expected = int(q.Quantity+7) / 8
		}
		if len(f.Payload) < 1 || int(f.Payload[0]) != expected ||
			len(f.Payload) != 1+expected {
			return nil, fmt.Errorf("%w: unexpected read response length %d",
				ErrMalformed, len(f.Payload))
		}
		return f.Payload[1:], nil
	}

	// Write responses echo the address and value (or quantity, or masks) of
	// the request.
	var echo []byte
	switch q.FunctionCode {
	case FunctionWriteSingleCoil, FunctionWriteSingleRegister,
		FunctionMaskWriteRegister:
		echo = q.pdu()
	case FunctionWriteMultipleCoils, FunctionWriteMultipleRegisters:
		echo = q.pdu()[:4]
	}
	if !bytes.Equal(f.Payload, echo) {
		return nil, fmt.Errorf("%w: got % X, want % X",
			ErrWriteMismatch, f.Payload, echo)
	}
	return f.Payload, nil
}
