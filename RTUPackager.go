package modbus

import (
	"errors"
	"fmt"
)

// RTUPackager implements the Packager interface for Modbus RTU framing:
// binary frames terminated by a little-endian CRC-16.
type RTUPackager struct{}

// EncodeRequest produces the RTU wire bytes of a request frame for q.
func (p *RTUPackager) EncodeRequest(q Query) ([]byte, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.SlaveID == 0 {
		return nil, errors.New("SlaveID cannot be 0 for Modbus RTU")
	}
	return p.EncodeResponse(q.requestFrame())
}

// EncodeResponse produces the RTU wire bytes of f.
func (p *RTUPackager) EncodeResponse(f Frame) ([]byte, error) {
	if len(f.Payload)+minRTUFrameSize > MaxRTUSize {
		return nil, fmt.Errorf("%w: payload too long: %d bytes",
			ErrMalformed, len(f.Payload))
	}
	return encodeRTU(f), nil
}

// DecodeResponse parses one slave response frame from the front of buf.
func (p *RTUPackager) DecodeResponse(buf []byte) (Frame, int, error) {
	return decodeRTU(buf, rtuResponseLength)
}

// DecodeRequest parses one master request frame from the front of buf.
func (p *RTUPackager) DecodeRequest(buf []byte) (Frame, int, error) {
	return decodeRTU(buf, rtuRequestLength)
}
