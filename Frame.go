package modbus

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Frame is a protocol data unit together with its unit address: the wire
// representation minus framing and the error-check field. The error-check
// field only exists on the wire and is recomputed on encode and verified on
// decode.
type Frame struct {
	Address  byte
	Function FunctionCode
	Payload  []byte
}

// exception returns the embedded exception code if f is an exception
// response.
func (f Frame) exception() (*ExceptionError, bool) {
	if f.Function&exceptionFlag == 0 || len(f.Payload) < 1 {
		return nil, false
	}
	return &ExceptionError{
		Function: f.Function &^ exceptionFlag,
		Code:     f.Payload[0],
	}, true
}

// minRTUFrameSize is address + function code + 16-bit CRC.
const minRTUFrameSize = 4

// encodeRTU serializes f to its RTU wire format:
//
//	[address:1][function:1][payload:N][crc16:2 little-endian]
func encodeRTU(f Frame) []byte {
	packet := make([]byte, 0, len(f.Payload)+minRTUFrameSize)
	packet = append(packet, f.Address, byte(f.Function))
	packet = append(packet, f.Payload...)

	packetCrc := crc(packet)
	packet = append(packet, byte(packetCrc&0xff), byte(packetCrc>>8))
	return packet
}

// lengthFunc computes the full expected RTU frame length, including the CRC,
// from the first bytes of a frame. It returns ErrShortFrame when more bytes
// are needed to determine the length.
type lengthFunc func(buf []byte) (int, error)

// rtuResponseLength determines the length of a slave response frame.
func rtuResponseLength(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, ErrShortFrame
	}
	code := FunctionCode(buf[1])
	if code&exceptionFlag != 0 {
		// [addr][fc|0x80][exception code][crc:2]
		return 5, nil
	}
	switch code {
	case FunctionReadCoils, FunctionReadDiscreteInputs,
		FunctionReadHoldingRegisters, FunctionReadInputRegisters:
		// [addr][fc][byte count][data...][crc:2]
		if len(buf) < 3 {
			return 0, ErrShortFrame
		}
		return 3 + int(buf[2]) + 2, nil
	case FunctionWriteSingleCoil, FunctionWriteSingleRegister,
		FunctionWriteMultipleCoils, FunctionWriteMultipleRegisters:
		// [addr][fc][address:2][value or quantity:2][crc:2]
		return 8, nil
	case FunctionMaskWriteRegister:
		// [addr][fc][address:2][and:2][or:2][crc:2]
		return 10, nil
	}
	return 0, fmt.Errorf("%w: function code 0x%02X", ErrMalformed, byte(code))
}

// rtuRequestLength determines the length of a master request frame.
func rtuRequestLength(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, ErrShortFrame
	}
	switch FunctionCode(buf[1]) {
	case FunctionReadCoils, FunctionReadDiscreteInputs,
		FunctionReadHoldingRegisters, FunctionReadInputRegisters,
		FunctionWriteSingleCoil, FunctionWriteSingleRegister:
		// [addr][fc][address:2][quantity or value:2][crc:2]
		return 8, nil
	case FunctionWriteMultipleCoils, FunctionWriteMultipleRegisters:
		// [addr][fc][address:2][quantity:2][byte count][data...][crc:2]
		if len(buf) < 7 {
			return 0, ErrShortFrame
		}
		return 7 + int(buf[6]) + 2, nil
	case FunctionMaskWriteRegister:
		return 10, nil
	}
	return 0, fmt.Errorf("%w: function code 0x%02X", ErrMalformed, buf[1])
}

// decodeRTU parses a single RTU frame from the front of buf. frameLen
// determines the expected frame length, which differs between request and
// response frames. On success it returns the frame and the number of bytes
// consumed. It returns ErrShortFrame when buf does not yet hold a complete
// frame and ErrChecksum when the recomputed CRC does not match the one on the
// wire.
func decodeRTU(buf []byte, frameLen lengthFunc) (Frame, int, error) {
	n, err := frameLen(buf)
	if err != nil {
		return Frame{}, 0, err
	}
	if n > MaxRTUSize {
		return Frame{}, 0, fmt.Errorf("%w: frame length %d exceeds %d",
			ErrMalformed, n, MaxRTUSize)
	}
	if len(buf) < n {
		return Frame{}, 0, ErrShortFrame
	}

	computed := crc(buf[:n-2])
	wire := binary.LittleEndian.Uint16(buf[n-2 : n])
	if computed != wire {
		return Frame{}, 0, fmt.Errorf("%w: wire=0x%04X computed=0x%04X",
			ErrChecksum, wire, computed)
	}

	f := Frame{
		Address:  buf[0],
		Function: FunctionCode(buf[1]),
	}
	if n > minRTUFrameSize {
		f.Payload = make([]byte, n-minRTUFrameSize)
		copy(f.Payload, buf[2:n-2])
	}
	return f, n, nil
}

// ASCII framing delimiters.
const (
	asciiStart = ':'
	asciiEnd   = "\r\n"
)

// minASCIIFrameSize is ':' + 2 hex address chars + 2 hex function chars +
// 2 hex LRC chars + CR LF.
const minASCIIFrameSize = 9

// encodeASCII serializes f to its ASCII wire format: a colon, the hex
// encoding of [address][function][payload][lrc], and CR LF.
func encodeASCII(f Frame) []byte {
	msg := make([]byte, 0, len(f.Payload)+3)
	msg = append(msg, f.Address, byte(f.Function))
	msg = append(msg, f.Payload...)
	msg = append(msg, lrc(msg))

	packet := make([]byte, 0, 1+2*len(msg)+2)
	packet = append(packet, asciiStart)
	packet = append(packet, []byte(fmt.Sprintf("%X", msg))...)
	packet = append(packet, asciiEnd...)
	return packet
}

// decodeASCII parses a single ASCII frame from the front of buf. The frame
// must start at buf[0]; leading noise is reported as ErrMalformed so the
// caller can resynchronize by discarding bytes.
func decodeASCII(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, ErrShortFrame
	}
	if buf[0] != asciiStart {
		return Frame{}, 0, fmt.Errorf("%w: expected ':' start character",
			ErrMalformed)
	}
	end := bytes.Index(buf, []byte(asciiEnd))
	if end == -1 {
		if len(buf) > MaxASCIISize {
			return Frame{}, 0, fmt.Errorf("%w: no frame end within %d bytes",
				ErrMalformed, MaxASCIISize)
		}
		return Frame{}, 0, ErrShortFrame
	}
	n := end + len(asciiEnd)
	if n < minASCIIFrameSize || (end-1)%2 != 0 {
		return Frame{}, 0, fmt.Errorf("%w: frame length %d", ErrMalformed, n)
	}

	msg := make([]byte, (end-1)/2)
	if _, err := hex.Decode(msg, buf[1:end]); err != nil {
		return Frame{}, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	wire := msg[len(msg)-1]
	msg = msg[:len(msg)-1]
	if computed := lrc(msg); computed != wire {
		return Frame{}, 0, fmt.Errorf("%w: wire=0x%02X computed=0x%02X",
			ErrChecksum, wire, computed)
	}

	return Frame{
		Address:  msg[0],
		Function: FunctionCode(msg[1]),
		Payload:  msg[2:],
	}, n, nil
}

// mbapHeaderSize is the size of the Modbus TCP MBAP header:
// transaction id (2), protocol id (2), length (2), unit id (1).
const mbapHeaderSize = 7

// encodeTCP serializes f to its Modbus TCP wire format: an MBAP header
// carrying the transaction id, followed by the function code and payload.
// TCP framing carries no checksum; the transport provides integrity.
func encodeTCP(f Frame, transactionID uint16) []byte {
	packet := make([]byte, mbapHeaderSize+1+len(f.Payload))
	binary.BigEndian.PutUint16(packet[0:2], transactionID)
	// bytes 2-3: protocol id, always zero
	binary.BigEndian.PutUint16(packet[4:6], uint16(len(f.Payload)+2))
	packet[6] = f.Address
	packet[7] = byte(f.Function)
	copy(packet[8:], f.Payload)
	return packet
}

// decodeTCP parses a single Modbus TCP frame from the front of buf and
// returns the frame, its MBAP transaction id and the number of bytes
// consumed.
func decodeTCP(buf []byte) (Frame, uint16, int, error) {
	if len(buf) < mbapHeaderSize+1 {
		return Frame{}, 0, 0, ErrShortFrame
	}
	if protocolID := binary.BigEndian.Uint16(buf[2:4]); protocolID != 0 {
		return Frame{}, 0, 0, fmt.Errorf("%w: protocol id 0x%04X",
			ErrMalformed, protocolID)
	}
	length := int(binary.BigEndian.Uint16(buf[4:6]))
	if length < 2 || 6+length > MaxTCPSize {
		return Frame{}, 0, 0, fmt.Errorf("%w: MBAP length %d", ErrMalformed, length)
	}
	n := 6 + length
	if len(buf) < n {
		return Frame{}, 0, 0, ErrShortFrame
	}

	f := Frame{
		Address:  buf[6],
		Function: FunctionCode(buf[7]),
	}
	if n > 8 {
		f.Payload = make([]byte, n-8)
		copy(f.Payload, buf[8:n])
	}
	return f, binary.BigEndian.Uint16(buf[0:2]), n, nil
}
