package modbus

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/scietex/modbus/logger"
)

// DataBlock is the in-memory coil and register store served by a Server. All
// accesses are bounds-checked and serialized. An OnChange callback can be
// registered to react to writes arriving from the bus.
type DataBlock struct {
	mu        sync.Mutex
	coils     []bool
	discretes []bool
	holding   []uint16
	input     []uint16

	onChange func(code FunctionCode, address, quantity uint16)
}

// NewDataBlock returns a DataBlock with the given number of coils, discrete
// inputs, holding registers and input registers, all zero-valued.
func NewDataBlock(coils, discretes, holding, input int) *DataBlock {
	return &DataBlock{
		coils:     make([]bool, coils),
		discretes: make([]bool, discretes),
		holding:   make([]uint16, holding),
		input:     make([]uint16, input),
	}
}

// OnChange registers fn to be called after every successful write request,
// with the function code and the affected address range. fn runs on the serve
// goroutine with the DataBlock locked and must not call back into it.
func (d *DataBlock) OnChange(fn func(code FunctionCode, address, quantity uint16)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// SetDiscreteInput sets the discrete input at address. Server applications
// use this to publish input state to the bus.
func (d *DataBlock) SetDiscreteInput(address uint16, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(address) >= len(d.discretes) {
		return fmt.Errorf("discrete input address %d out of range", address)
	}
	d.discretes[address] = on
	return nil
}

// SetInputRegister sets the input register at address. Server applications
// use this to publish measurements to the bus.
func (d *DataBlock) SetInputRegister(address, value uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(address) >= len(d.input) {
		return fmt.Errorf("input register address %d out of range", address)
	}
	d.input[address] = value
	return nil
}

// Coil returns the value of the coil at address.
func (d *DataBlock) Coil(address uint16) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(address) >= len(d.coils) {
		return false, fmt.Errorf("coil address %d out of range", address)
	}
	return d.coils[address], nil
}

// HoldingRegister returns the value of the holding register at address.
func (d *DataBlock) HoldingRegister(address uint16) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(address) >= len(d.holding) {
		return 0, fmt.Errorf("holding register address %d out of range", address)
	}
	return d.holding[address], nil
}

// notify requires d.mu held.
func (d *DataBlock) notify(code FunctionCode, address, quantity uint16) {
	if d.onChange != nil {
		d.onChange(code, address, quantity)
	}
}

// Server answers queries for a single unit address over a Transporter,
// serving a DataBlock. Frames addressed to other units on a shared bus are
// ignored; noise is discarded byte-wise until a valid frame parses.
type Server struct {
	cfg      ConnectionSettings
	packager Packager
	tr       Transporter
	data     *DataBlock
	log      logger.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewServer opens the transport described by cs and returns a Server for it
// serving data. Call Start to begin answering queries.
func NewServer(cs ConnectionSettings, data *DataBlock) (*Server, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	var tr Transporter
	var err error
	switch cs.Mode {
	case ModeTCP:
		tr, err = newTCPTransporter(cs)
	default:
		tr, err = newSerialTransporter(cs)
	}
	if err != nil {
		return nil, err
	}
	return newServer(cs, tr, data)
}

// NewServerWithTransporter returns a Server for an already-open Transporter,
// e.g. one end of a VirtualPair or an accepted TCP connection.
func NewServerWithTransporter(cs ConnectionSettings, tr Transporter, data *DataBlock) (*Server, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return newServer(cs, tr, data)
}

func newServer(cs ConnectionSettings, tr Transporter, data *DataBlock) (*Server, error) {
	p, err := NewPackager(cs.Mode)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cs,
		packager: p,
		tr:       tr,
		data:     data,
		log: logger.GetLogger().With("host", cs.Host, "slave", cs.SlaveID,
			"mode", ModeNames[cs.Mode]),
		done: make(chan struct{}),
	}, nil
}

// Start launches the serve loop. It returns immediately.
func (s *Server) Start() {
	s.wg.Add(1)
	go s.serve()
}

// Close stops the serve loop and closes the transport.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return s.tr.Close()
}

// serverPollInterval bounds how long a read blocks before the serve loop
// rechecks for shutdown.
const serverPollInterval = 50 * time.Millisecond

func (s *Server) serve() {
	defer s.wg.Done()

	var buf []byte
	tmp := make([]byte, MaxASCIISize)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.tr.SetReadDeadline(time.Now().Add(serverPollInterval))
		n, err := s.tr.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			buf = s.consume(buf)
		}
		if err != nil && !isTimeout(err) {
			s.log.Debug("read ended", "err", err)
			return
		}
	}
}

// consume parses and answers as many complete requests as buf holds,
// returning the unconsumed remainder. A buffer that cannot begin a valid
// frame is resynchronized by discarding its first byte.
func (s *Server) consume(buf []byte) []byte {
	for len(buf) > 0 {
		f, n, err := s.packager.DecodeRequest(buf)
		if err == nil {
			buf = buf[n:]
			s.answer(f)
			continue
		}
		if isShortFrame(err) {
			return buf
		}
		// Checksum mismatch or garbage: drop one byte and re-parse.
		buf = buf[1:]
	}
	return buf
}

func (s *Server) answer(req Frame) {
	if req.Address != s.cfg.SlaveID {
		// Another unit's conversation on a shared bus.
		return
	}
	res := s.dispatch(req)
	adu, err := s.packager.EncodeResponse(res)
	if err != nil {
		s.log.Error("encode response", "err", err)
		return
	}
	if _, err := s.tr.Write(adu); err != nil {
		s.log.Error("write response", "err", err)
	}
}

// exceptionFrame builds the exception response for req with the given reason
// code.
func exceptionFrame(req Frame, code byte) Frame {
	return Frame{
		Address:  req.Address,
		Function: req.Function | exceptionFlag,
		Payload:  []byte{code},
	}
}

// dispatch applies a request to the DataBlock and builds the response frame.
func (s *Server) dispatch(req Frame) Frame {
	d := s.data
	d.mu.Lock()
	defer d.mu.Unlock()

	switch req.Function {
	case FunctionReadCoils:
		return s.readBits(req, d.coils)
	case FunctionReadDiscreteInputs:
		return s.readBits(req, d.discretes)
	case FunctionReadHoldingRegisters:
		return s.readRegisters(req, d.holding)
	case FunctionReadInputRegisters:
		return s.readRegisters(req, d.input)

	case FunctionWriteSingleCoil:
		if len(req.Payload) != 4 {
			return exceptionFrame(req, ExceptionIllegalDataValue)
		}
		address := binary.BigEndian.Uint16(req.Payload[0:2])
		value := binary.BigEndian.Uint16(req.Payload[2:4])
		if value != 0xFF00 && value != 0x0000 {
			return exceptionFrame(req, ExceptionIllegalDataValue)
		}
		if int(address) >= len(d.coils) {
			return exceptionFrame(req, ExceptionIllegalDataAddress)
		}
		d.coils[address] = value == 0xFF00
		d.notify(req.Function, address, 1)
		return Frame{Address: req.Address, Function: req.Function, Payload: req.Payload}

	case FunctionWriteSingleRegister:
		if len(req.Payload) != 4 {
			return exceptionFrame(req, ExceptionIllegalDataValue)
		}
		address := binary.BigEndian.Uint16(req.Payload[0:2])
		if int(address) >= len(d.holding) {
			return exceptionFrame(req, ExceptionIllegalDataAddress)
		}
		d.holding[address] = binary.BigEndian.Uint16(req.Payload[2:4])
		d.notify(req.Function, address, 1)
		return Frame{Address: req.Address, Function: req.Function, Payload: req.Payload}

	case FunctionWriteMultipleCoils:
		if len(req.Payload) < 5 {
			return exceptionFrame(req, ExceptionIllegalDataValue)
		}
		address := binary.BigEndian.Uint16(req.Payload[0:2])
		quantity := binary.BigEndian.Uint16(req.Payload[2:4])
		count := int(req.Payload[4])
		if quantity == 0 || quantity > 2000 ||
			count != int(quantity+7)/8 || len(req.Payload) != 5+count {
			return exceptionFrame(req, ExceptionIllegalDataValue)
		}
		if int(address)+int(quantity) > len(d.coils) {
			return exceptionFrame(req, ExceptionIllegalDataAddress)
		}
		for i, v := range UnpackCoils(req.Payload[5:], quantity) {
			d.coils[int(address)+i] = v
		}
		d.notify(req.Function, address, quantity)
		return Frame{Address: req.Address, Function: req.Function,
			Payload: req.Payload[0:4]}

	case FunctionWriteMultipleRegisters:
		if len(req.Payload) < 5 {
			return exceptionFrame(req, ExceptionIllegalDataValue)
		}
		address := binary.BigEndian.Uint16(req.Payload[0:2])
		quantity := binary.BigEndian.Uint16(req.Payload[2:4])
		count := int(req.Payload[4])
		if quantity == 0 || quantity > 123 ||
			count != 2*int(quantity) || len(req.Payload) != 5+count {
			return exceptionFrame(req, ExceptionIllegalDataValue)
		}
		if int(address)+int(quantity) > len(d.holding) {
			return exceptionFrame(req, ExceptionIllegalDataAddress)
		}
		for i, v := range RegistersFromBytes(req.Payload[5:]) {
			d.holding[int(address)+i] = v
		}
		d.notify(req.Function, address, quantity)
		return Frame{Address: req.Address, Function: req.Function,
			Payload: req.Payload[0:4]}

	case FunctionMaskWriteRegister:
		if len(req.Payload) != 6 {
			return exceptionFrame(req, ExceptionIllegalDataValue)
		}
		address := binary.BigEndian.Uint16(req.Payload[0:2])
		andMask := binary.BigEndian.Uint16(req.Payload[2:4])
		orMask := binary.BigEndian.Uint16(req.Payload[4:6])
		if int(address) >= len(d.holding) {
			return exceptionFrame(req, ExceptionIllegalDataAddress)
		}
		d.holding[address] = (d.holding[address] & andMask) | (orMask &^ andMask)
		d.notify(req.Function, address, 1)
		return Frame{Address: req.Address, Function: req.Function, Payload: req.Payload}
	}

	return exceptionFrame(req, ExceptionIllegalFunction)
}

// readBits requires s.data.mu held.
func (s *Server) readBits(req Frame, bits []bool) Frame {
	if len(req.Payload) != 4 {
		return exceptionFrame(req, ExceptionIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Payload[0:2])
	quantity := binary.BigEndian.Uint16(req.Payload[2:4])
	if quantity == 0 || quantity > 2000 {
		return exceptionFrame(req, ExceptionIllegalDataValue)
	}
	if int(address)+int(quantity) > len(bits) {
		return exceptionFrame(req, ExceptionIllegalDataAddress)
	}
	data := PackCoils(bits[address : address+quantity])
	payload := append([]byte{byte(len(data))}, data...)
	return Frame{Address: req.Address, Function: req.Function, Payload: payload}
}

// readRegisters requires s.data.mu held.
func (s *Server) readRegisters(req Frame, regs []uint16) Frame {
	if len(req.Payload) != 4 {
		return exceptionFrame(req, ExceptionIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Payload[0:2])
	quantity := binary.BigEndian.Uint16(req.Payload[2:4])
	if quantity == 0 || quantity > 125 {
		return exceptionFrame(req, ExceptionIllegalDataValue)
	}
	if int(address)+int(quantity) > len(regs) {
		return exceptionFrame(req, ExceptionIllegalDataAddress)
	}
	data := BytesFromRegisters(regs[address : address+quantity])
	payload := append([]byte{byte(len(data))}, data...)
	return Frame{Address: req.Address, Function: req.Function, Payload: payload}
}
