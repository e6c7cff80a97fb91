package modbus

import "fmt"

// TCPPackager implements the Packager interface for Modbus TCP framing: an
// MBAP header instead of a checksum, with a transaction identifier
// correlating responses to requests. The packager is stateful; the client
// side increments the transaction id per request, the server side echoes the
// id of the last decoded request. It is not safe for concurrent use, which is
// satisfied by the single-transaction-in-flight rule.
type TCPPackager struct {
	transactionID uint16
	requestID     uint16
}

// EncodeRequest produces the TCP wire bytes of a request frame for q under a
// fresh transaction id.
func (p *TCPPackager) EncodeRequest(q Query) ([]byte, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	p.transactionID++
	return encodeTCP(q.requestFrame(), p.transactionID), nil
}

// DecodeResponse parses one response frame from the front of buf and checks
// its transaction id against the last encoded request.
func (p *TCPPackager) DecodeResponse(buf []byte) (Frame, int, error) {
	f, tid, n, err := decodeTCP(buf)
	if err != nil {
		return Frame{}, 0, err
	}
	if tid != p.transactionID {
		return Frame{}, 0, fmt.Errorf("%w: got %d, want %d",
			ErrTransactionID, tid, p.transactionID)
	}
	return f, n, nil
}

// DecodeRequest parses one request frame from the front of buf, retaining its
// transaction id for the response.
func (p *TCPPackager) DecodeRequest(buf []byte) (Frame, int, error) {
	f, tid, n, err := decodeTCP(buf)
	if err != nil {
		return Frame{}, 0, err
	}
	p.requestID = tid
	return f, n, nil
}

// EncodeResponse produces the TCP wire bytes of f under the transaction id of
// the last decoded request.
func (p *TCPPackager) EncodeResponse(f Frame) ([]byte, error) {
	if len(f.Payload)+mbapHeaderSize+1 > MaxTCPSize {
		return nil, fmt.Errorf("%w: payload too long: %d bytes",
			ErrMalformed, len(f.Payload))
	}
	return encodeTCP(f, p.requestID), nil
}
