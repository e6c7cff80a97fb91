package modbus

import "fmt"

// Packager frames Queries for one Modbus mode and recognizes complete frames
// at the front of a receive buffer. Packagers are pure codecs: they never
// touch the transport, and decoding a partial buffer reports ErrShortFrame so
// the caller can keep accumulating bytes. A Packager is implemented for the
// three modbus Modes: RTUPackager, ASCIIPackager and TCPPackager.
type Packager interface {
	// EncodeRequest produces the wire bytes of a request frame for q.
	EncodeRequest(q Query) ([]byte, error)
	// DecodeResponse parses one response frame from the front of buf and
	// returns the frame and the number of bytes consumed.
	DecodeResponse(buf []byte) (Frame, int, error)
	// DecodeRequest parses one request frame from the front of buf. It is
	// the slave-side counterpart of DecodeResponse.
	DecodeRequest(buf []byte) (Frame, int, error)
	// EncodeResponse produces the wire bytes of a response frame. It is the
	// slave-side counterpart of EncodeRequest.
	EncodeResponse(f Frame) ([]byte, error)
}

// NewPackager returns the Packager for the given framing mode.
func NewPackager(mode Mode) (Packager, error) {
	switch mode {
	case ModeRTU:
		return &RTUPackager{}, nil
	case ModeASCII:
		return &ASCIIPackager{}, nil
	case ModeTCP:
		return &TCPPackager{}, nil
	}
	return nil, fmt.Errorf("invalid Mode: %v", mode)
}
