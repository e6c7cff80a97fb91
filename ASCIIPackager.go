package modbus

import (
	"errors"
	"fmt"
)

// ASCIIPackager implements the Packager interface for Modbus ASCII framing:
// colon-delimited hex frames terminated by an LRC and CR LF. Frame boundaries
// come from the delimiters, so requests and responses decode identically.
type ASCIIPackager struct{}

// EncodeRequest produces the ASCII wire bytes of a request frame for q.
func (p *ASCIIPackager) EncodeRequest(q Query) ([]byte, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.SlaveID == 0 {
		return nil, errors.New("SlaveID cannot be 0 for Modbus ASCII")
	}
	return p.EncodeResponse(q.requestFrame())
}

// EncodeResponse produces the ASCII wire bytes of f.
func (p *ASCIIPackager) EncodeResponse(f Frame) ([]byte, error) {
	packet := encodeASCII(f)
	if len(packet) > MaxASCIISize {
		return nil, fmt.Errorf("%w: payload too long: %d bytes",
			ErrMalformed, len(f.Payload))
	}
	return packet, nil
}

// DecodeResponse parses one frame from the front of buf.
func (p *ASCIIPackager) DecodeResponse(buf []byte) (Frame, int, error) {
	return decodeASCII(buf)
}

// DecodeRequest parses one frame from the front of buf.
func (p *ASCIIPackager) DecodeRequest(buf []byte) (Frame, int, error) {
	return decodeASCII(buf)
}
