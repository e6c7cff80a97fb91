package modbus

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientManagerTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	data := NewDataBlock(8, 8, 8, 8)
	srvCh := make(chan *Server, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			srvCh <- nil
			return
		}
		srv, err := NewServerWithTransporter(ConnectionSettings{
			Mode: ModeTCP, Host: conn.RemoteAddr().String(), SlaveID: 1,
		}, conn.(*net.TCPConn), data)
		if err != nil {
			conn.Close()
			srvCh <- nil
			return
		}
		srv.Start()
		srvCh <- srv
	}()

	cm := GetClientManager()
	cs := ConnectionSettings{
		Mode: ModeTCP, Host: ln.Addr().String(),
		Timeout: time.Second, MaxRetries: -1, SlaveID: 1,
	}
	ch, err := cm.SetupClient(cs)
	require.NoError(t, err)

	srv := <-srvCh
	require.NotNil(t, srv)
	defer srv.Close()

	require.NoError(t, ch.WriteSingleRegister(2, 0xBEEF))
	regs, err := ch.ReadHoldingRegisters(2, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xBEEF}, regs)

	// A second SetupClient with matching settings shares the client.
	ch2, err := cm.SetupClient(cs)
	require.NoError(t, err)
	regs, err = ch2.ReadHoldingRegisters(2, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xBEEF}, regs)

	// The same host with different settings is rejected.
	bad := cs
	bad.Timeout = 2 * time.Second
	_, err = cm.SetupClient(bad)
	assert.Error(t, err)

	require.NoError(t, ch2.Close())
	require.NoError(t, ch.Close())
}

func TestClientManagerSingleton(t *testing.T) {
	assert.Same(t, GetClientManager(), GetClientManager())
}

func TestClientManagerInvalidSettings(t *testing.T) {
	_, err := GetClientManager().SetupClient(ConnectionSettings{Mode: ModeTCP})
	assert.Error(t, err)
}
