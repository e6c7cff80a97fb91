package modbus

import "net"

// newTCPTransporter connects to the slave device (server) named by c.Host.
// A *net.TCPConn satisfies the Transporter interface directly.
func newTCPTransporter(c ConnectionSettings) (Transporter, error) {
	addr, err := net.ResolveTCPAddr("tcp", c.Host)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	return conn, nil
}
