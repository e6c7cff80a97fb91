// Package modbus implements a Modbus master and a simple slave over serial
// (RTU and ASCII framing) and TCP transports.
//
// The client side is a request/response transaction engine: typed Queries are
// framed by a Packager, written to a Transporter, and matched against the
// accumulated response bytes under a per-transaction deadline with a
// configurable retry ceiling. Only one transaction is ever in flight on a
// session; concurrent callers are serialized through a FIFO queue and receive
// their responses in submission order.
//
// Obtain a ClientHandle either from NewClient for a private client or from
// the ClientManager when several packages may share one bus. The Server type
// answers queries for a single unit address from a DataBlock, and VirtualPair
// connects a client and a server in memory for tests.
package modbus
