package modbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/scietex/modbus/logger"
)

// ClientHandle provides a handle for sending Queries to a Client.
type ClientHandle struct {
	queryQueue chan query
	response   chan queryResponse
	ConnectionSettings
}

// Send submits a Query to the associated Client and blocks until the
// transaction reaches a terminal status, returning the decoded response data
// or the error that ended the transaction.
func (ch *ClientHandle) Send(q Query) ([]byte, error) {
	return ch.SendContext(context.Background(), q)
}

// SendContext is Send with cancellation. Cancelling ctx while the transaction
// is still queued releases its slot without touching the wire and returns
// ErrCancelled; once the transaction is in flight the transport read is only
// abandoned at deadline expiry.
func (ch *ClientHandle) SendContext(ctx context.Context, q Query) ([]byte, error) {
	if ch.queryQueue == nil {
		return nil, fmt.Errorf("%w: ClientHandle has been closed", ErrClosed)
	}
	select {
	case ch.queryQueue <- query{Query: q, ctx: ctx, response: ch.response}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	res := <-ch.response
	return res.data, res.err
}

// Close closes the ClientHandle. Once all ClientHandles for a given Client
// have been closed, the Client will shutdown.
func (ch *ClientHandle) Close() error {
	if ch.queryQueue == nil {
		return fmt.Errorf("%w: ClientHandle was already closed", ErrClosed)
	}
	close(ch.queryQueue)
	ch.queryQueue = nil
	return nil
}

// ReadCoils reads quantity coils starting at address from the configured
// slave device.
func (ch *ClientHandle) ReadCoils(address, quantity uint16) ([]bool, error) {
	q, err := ReadCoils(ch.SlaveID, address, quantity)
	if err != nil {
		return nil, err
	}
	data, err := ch.Send(q)
	if err != nil {
		return nil, err
	}
	return UnpackCoils(data, quantity), nil
}

// ReadDiscreteInputs reads quantity discrete inputs starting at address from
// the configured slave device.
func (ch *ClientHandle) ReadDiscreteInputs(address, quantity uint16) ([]bool, error) {
	q, err := ReadDiscreteInputs(ch.SlaveID, address, quantity)
	if err != nil {
		return nil, err
	}
	data, err := ch.Send(q)
	if err != nil {
		return nil, err
	}
	return UnpackCoils(data, quantity), nil
}

// ReadHoldingRegisters reads quantity holding registers starting at address
// from the configured slave device.
func (ch *ClientHandle) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	q, err := ReadHoldingRegisters(ch.SlaveID, address, quantity)
	if err != nil {
		return nil, err
	}
	data, err := ch.Send(q)
	if err != nil {
		return nil, err
	}
	return RegistersFromBytes(data), nil
}

// ReadInputRegisters reads quantity input registers starting at address from
// the configured slave device.
func (ch *ClientHandle) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	q, err := ReadInputRegisters(ch.SlaveID, address, quantity)
	if err != nil {
		return nil, err
	}
	data, err := ch.Send(q)
	if err != nil {
		return nil, err
	}
	return RegistersFromBytes(data), nil
}

// WriteSingleCoil sets the coil at address on the configured slave device.
func (ch *ClientHandle) WriteSingleCoil(address uint16, on bool) error {
	q, err := WriteSingleCoil(ch.SlaveID, address, on)
	if err != nil {
		return err
	}
	_, err = ch.Send(q)
	return err
}

// WriteSingleRegister sets the holding register at address on the configured
// slave device.
func (ch *ClientHandle) WriteSingleRegister(address, value uint16) error {
	q, err := WriteSingleRegister(ch.SlaveID, address, value)
	if err != nil {
		return err
	}
	_, err = ch.Send(q)
	return err
}

// WriteMultipleCoils sets len(values) coils starting at address on the
// configured slave device.
func (ch *ClientHandle) WriteMultipleCoils(address uint16, values []bool) error {
	q, err := WriteMultipleCoils(ch.SlaveID, address, uint16(len(values)),
		PackCoils(values))
	if err != nil {
		return err
	}
	_, err = ch.Send(q)
	return err
}

// WriteMultipleRegisters sets len(values) holding registers starting at
// address on the configured slave device.
func (ch *ClientHandle) WriteMultipleRegisters(address uint16, values []uint16) error {
	q, err := WriteMultipleRegisters(ch.SlaveID, address, uint16(len(values)),
		BytesFromRegisters(values))
	if err != nil {
		return err
	}
	_, err = ch.Send(q)
	return err
}

// MaskWriteRegister modifies the holding register at address on the
// configured slave device using the given AND and OR masks.
func (ch *ClientHandle) MaskWriteRegister(address, andMask, orMask uint16) error {
	q, err := MaskWriteRegister(ch.SlaveID, address, andMask, orMask)
	if err != nil {
		return err
	}
	_, err = ch.Send(q)
	return err
}

// Client is the abstract interface to a client. To start the client and send
// Queries to it, request a *ClientHandle with NewClientHandle. The underlying
// client has a queryListener goroutine that listens for Queries and owns the
// transport session: transactions execute one at a time, in submission order,
// so responses are delivered to callers in the order their requests were
// queued. Clients start when the first ClientHandle is requested and shutdown
// once all ClientHandles have been closed with ClientHandle.Close().
type Client interface {
	NewClientHandle() (*ClientHandle, error)
}

// NewClient sets up a client with the given ConnectionSettings and returns a
// Client interface for requesting ClientHandles. Clients created using
// NewClient are not tracked by the ClientManager; if several packages may
// share one bus, use ClientManager.SetupClient instead.
func NewClient(cs ConnectionSettings) (Client, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return &client{ConnectionSettings: cs}, nil
}

// NewClientWithTransporter is NewClient over an already-open Transporter. The
// Mode still selects the framing. This is how a client runs over one end of a
// VirtualPair or any other custom byte stream.
func NewClientWithTransporter(cs ConnectionSettings, t Transporter) (Client, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return &client{ConnectionSettings: cs, transporter: t}, nil
}

// client is the underlying type that implements the Client interface.
type client struct {
	ConnectionSettings

	// transporter is non-nil when supplied by NewClientWithTransporter;
	// otherwise start opens one per the Mode.
	transporter Transporter
	trans       *transactor
	log         logger.Logger

	// onShutdown is set by the ClientManager so a shutdown client is removed
	// from its registry.
	onShutdown func()

	mu sync.Mutex
	wg sync.WaitGroup

	qq          chan query
	newQQSignal chan struct{}
}

// NewClientHandle starts the client if it isn't already running and then, if
// successful, returns a new ClientHandle and starts a goroutine that forwards
// the queries sent by that ClientHandle onto the client's main internal query
// channel.
func (c *client) NewClientHandle() (*ClientHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.qq == nil {
		return c.start()
	}
	return c.newClientHandle(), nil
}

// newClientHandle requires c.mu held and the client running.
func (c *client) newClientHandle() *ClientHandle {
	// This wait group tracks the number of open ClientHandles.
	c.wg.Add(1)
	qq := make(chan query)

	// Send a blocking newQQSignal to be cleared when the forwarding goroutine
	// exits on channel close. This lets the queryQueueChannelMonitor tell a
	// genuine shutdown apart from the window where a new handle is being set
	// up just as the last old one closes.
	go func() {
		c.newQQSignal <- struct{}{}
	}()
	// Forward queries from the newly created queue onto the client's main
	// internal qq.
	go func() {
		for q := range qq {
			c.qq <- q
		}
		<-c.newQQSignal // Consume newQQSignal before signaling Done()
		c.wg.Done()
	}()

	return &ClientHandle{
		ConnectionSettings: c.ConnectionSettings,
		queryQueue:         qq,
		response:           make(chan queryResponse),
	}
}

// start sets up the Packager and Transporter for the client's
// ConnectionSettings and, if successful, starts the client's queryListener
// and queryQueueChannelMonitor goroutines and returns a new *ClientHandle.
// Requires c.mu held.
func (c *client) start() (*ClientHandle, error) {
	p, err := NewPackager(c.Mode)
	if err != nil {
		return nil, err
	}
	t := c.transporter
	if t == nil {
		switch c.Mode {
		case ModeTCP:
			t, err = newTCPTransporter(c.ConnectionSettings)
		default:
			t, err = newSerialTransporter(c.ConnectionSettings)
		}
		if err != nil {
			return nil, err
		}
	}
	c.log = logger.GetLogger().With("host", c.Host, "mode", ModeNames[c.Mode])
	c.trans = &transactor{
		packager:    p,
		transporter: t,
		timeout:     c.Timeout,
		maxRetries:  c.MaxRetries,
		log:         c.log,
	}

	c.qq = make(chan query)
	c.newQQSignal = make(chan struct{})
	go c.queryListener()

	ch := c.newClientHandle()
	go c.queryQueueChannelMonitor()
	return ch, nil
}

// queryListener owns the transport session. It executes queries from the qq
// one at a time and sends each queryResponse to the query's response channel,
// preserving submission order. Queries whose context was cancelled while
// queued are released without touching the wire.
func (c *client) queryListener() {
	// Close the Transporter on exit
	defer c.trans.transporter.Close()

	for qry := range c.qq {
		if qry.response == nil {
			c.log.Warn("query without response channel dropped")
			continue
		}
		txn := c.trans.newTransaction(qry.Query)
		if qry.ctx != nil && qry.ctx.Err() != nil {
			txn.Status = TransactionCancelled
			qry.response <- queryResponse{
				err: fmt.Errorf("%w: %v", ErrCancelled, qry.ctx.Err()),
			}
			continue
		}
		data, err := c.trans.execute(txn)
		qry.response <- queryResponse{data: data, err: err}
	}
}

// queryQueueChannelMonitor waits for all query forwarding goroutines to exit
// due to their respective ClientHandles being closed. After all ClientHandles
// are closed this goroutine shuts down the queryListener by closing the
// client's qq query channel.
func (c *client) queryQueueChannelMonitor() {
	for {
		// Wait until all queryQueue channels have signaled Done()
		c.wg.Wait()
		c.mu.Lock()
		// Check for any handle created between Wait() returning and acquiring
		// the lock.
		select {
		case <-c.newQQSignal:
			// Relaunch the goroutine holding the blocking newQQSignal
			go func() {
				c.newQQSignal <- struct{}{}
			}()
			c.mu.Unlock()
			continue
		default:
		}
		break
	}
	if c.onShutdown != nil {
		c.onShutdown()
	}
	close(c.qq)
	c.qq = nil
	c.mu.Unlock()
}

// query encapsulates a Query with its cancellation context and a
// queryResponse channel so it can be sent to a Client.
type query struct {
	Query
	ctx      context.Context
	response chan queryResponse
}

// queryResponse encapsulates the response data and error for a query.
type queryResponse struct {
	data []byte
	err  error
}
