package modbus

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the codec, transaction engine and client.
// Use errors.Is to test for them; returned errors may wrap additional
// context.
var (
	// ErrMalformed indicates a byte sequence that cannot be a valid frame,
	// e.g. one shorter than the minimum frame size.
	ErrMalformed = errors.New("modbus: malformed frame")

	// ErrShortFrame indicates that more bytes are required before a frame can
	// be decoded. It wraps ErrMalformed: a short buffer handed directly to a
	// decoder is malformed, but the receive loop keeps accumulating on it.
	ErrShortFrame = fmt.Errorf("%w: incomplete", ErrMalformed)

	// ErrChecksum indicates that the recomputed error-check field of a frame
	// does not match the value embedded on the wire.
	ErrChecksum = errors.New("modbus: checksum mismatch")

	// ErrTimeout is returned once a transaction has exhausted its retries
	// without receiving a complete response before its deadline.
	ErrTimeout = errors.New("modbus: request timed out")

	// ErrCancelled is returned when a queued transaction is cancelled before
	// it reaches the wire.
	ErrCancelled = errors.New("modbus: transaction cancelled")

	// ErrClosed is returned when sending on a closed ClientHandle or client.
	ErrClosed = errors.New("modbus: closed")

	// ErrSlaveMismatch indicates a response frame carrying an unexpected
	// unit address.
	ErrSlaveMismatch = errors.New("modbus: response slave id mismatch")

	// ErrFunctionMismatch indicates a response frame carrying an unexpected
	// function code.
	ErrFunctionMismatch = errors.New("modbus: response function code mismatch")

	// ErrTransactionID indicates a Modbus TCP response whose MBAP transaction
	// identifier does not match the request.
	ErrTransactionID = errors.New("modbus: transaction id mismatch")

	// ErrWriteMismatch indicates a write response that does not echo the
	// request.
	ErrWriteMismatch = errors.New("modbus: write data mismatch")
)

// Modbus exception codes returned by a slave device in an exception response.
const (
	ExceptionIllegalFunction    byte = 0x01
	ExceptionIllegalDataAddress byte = 0x02
	ExceptionIllegalDataValue   byte = 0x03
	ExceptionSlaveDeviceFailure byte = 0x04
	ExceptionAcknowledge        byte = 0x05
	ExceptionSlaveDeviceBusy    byte = 0x06
	ExceptionMemoryParityError  byte = 0x08
	ExceptionGatewayPath        byte = 0x0A
	ExceptionGatewayNoResponse  byte = 0x0B
)

// exceptionNames maps exception codes to their names from the Modbus
// application protocol specification.
var exceptionNames = map[byte]string{
	ExceptionIllegalFunction:    "Illegal Function",
	ExceptionIllegalDataAddress: "Illegal Data Address",
	ExceptionIllegalDataValue:   "Illegal Data Value",
	ExceptionSlaveDeviceFailure: "Slave Device Failure",
	ExceptionAcknowledge:        "Acknowledge",
	ExceptionSlaveDeviceBusy:    "Slave Device Busy",
	ExceptionMemoryParityError:  "Memory Parity Error",
	ExceptionGatewayPath:        "Gateway Path Unavailable",
	ExceptionGatewayNoResponse:  "Gateway Target Device Failed to Respond",
}

// isShortFrame reports whether err indicates an incomplete frame, as opposed
// to any other malformed input.
func isShortFrame(err error) bool {
	return errors.Is(err, ErrShortFrame)
}

// ExceptionError is a protocol-level error returned by the remote device in
// an exception response, carrying the reason code.
type ExceptionError struct {
	Function FunctionCode // the function code of the original request
	Code     byte         // the exception reason code
}

func (e *ExceptionError) Error() string {
	name, ok := exceptionNames[e.Code]
	if !ok {
		name = "Unknown"
	}
	return fmt.Sprintf("modbus: exception response to %s: %s (0x%02X)",
		FunctionNames[e.Function], name, e.Code)
}
