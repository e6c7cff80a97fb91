package modbus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scietex/modbus/logger"
)

// scriptedTransporter records writes and serves canned read chunks, one chunk
// per Read call. Once the script is exhausted, Read reports readErr, or a
// deadline expiry when readErr is nil.
type scriptedTransporter struct {
	mu      sync.Mutex
	writes  [][]byte
	reads   [][]byte
	readErr error
}

func (s *scriptedTransporter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := make([]byte, len(p))
	copy(w, p)
	s.writes = append(s.writes, w)
	return len(p), nil
}

func (s *scriptedTransporter) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reads) == 0 {
		if s.readErr != nil {
			return 0, s.readErr
		}
		return 0, errDeadline
	}
	chunk := s.reads[0]
	s.reads = s.reads[1:]
	return copy(p, chunk), nil
}

func (s *scriptedTransporter) SetReadDeadline(time.Time) error { return nil }
func (s *scriptedTransporter) Close() error                    { return nil }

func (s *scriptedTransporter) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func newTestTransactor(tr Transporter, timeout time.Duration, maxRetries int) *transactor {
	return &transactor{
		packager:    &RTUPackager{},
		transporter: tr,
		timeout:     timeout,
		maxRetries:  maxRetries,
		log:         logger.GetLogger(),
	}
}

func TestTransactionIDsIncrease(t *testing.T) {
	tr := newTestTransactor(&scriptedTransporter{}, time.Millisecond, 0)
	q, err := ReadCoils(1, 0, 1)
	require.NoError(t, err)

	a := tr.newTransaction(q)
	b := tr.newTransaction(q)
	assert.Equal(t, TransactionPending, a.Status)
	assert.Greater(t, b.ID, a.ID)
}

func TestTransactionTimeoutRetries(t *testing.T) {
	st := &scriptedTransporter{}
	tr := newTestTransactor(st, 10*time.Millisecond, 2)

	q, err := ReadHoldingRegisters(1, 0, 1)
	require.NoError(t, err)
	txn := tr.newTransaction(q)

	_, err = tr.execute(txn)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, TransactionTimedOut, txn.Status)
	assert.Equal(t, 2, txn.Retries)
	// The request is re-sent once per retry.
	assert.Equal(t, 3, st.writeCount())
}

func TestTransactionNoRetries(t *testing.T) {
	st := &scriptedTransporter{}
	tr := newTestTransactor(st, 10*time.Millisecond, 0)

	q, err := ReadHoldingRegisters(1, 0, 1)
	require.NoError(t, err)
	txn := tr.newTransaction(q)

	_, err = tr.execute(txn)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, st.writeCount())
}

func TestTransactionFragmentedResponse(t *testing.T) {
	res := encodeRTU(Frame{
		Address:  1,
		Function: FunctionReadHoldingRegisters,
		Payload:  []byte{0x02, 0xAB, 0xCD},
	})
	st := &scriptedTransporter{
		reads: [][]byte{res[:2], res[2:5], res[5:]},
	}
	tr := newTestTransactor(st, 100*time.Millisecond, 0)

	q, err := ReadHoldingRegisters(1, 0, 1)
	require.NoError(t, err)
	txn := tr.newTransaction(q)

	data, err := tr.execute(txn)
	require.NoError(t, err)
	assert.Equal(t, TransactionCompleted, txn.Status)
	assert.Equal(t, []byte{0xAB, 0xCD}, data)
	assert.Equal(t, 1, st.writeCount())
}

func TestTransactionChecksumFailureNotRetried(t *testing.T) {
	res := encodeRTU(Frame{
		Address:  1,
		Function: FunctionReadHoldingRegisters,
		Payload:  []byte{0x02, 0xAB, 0xCD},
	})
	res[len(res)-1] ^= 0xFF
	st := &scriptedTransporter{reads: [][]byte{res}}
	tr := newTestTransactor(st, 100*time.Millisecond, 5)

	q, err := ReadHoldingRegisters(1, 0, 1)
	require.NoError(t, err)
	txn := tr.newTransaction(q)

	_, err = tr.execute(txn)
	require.ErrorIs(t, err, ErrChecksum)
	assert.Equal(t, TransactionFailed, txn.Status)
	assert.Equal(t, 1, st.writeCount())
}

func TestTransactionExceptionResponse(t *testing.T) {
	res := encodeRTU(Frame{
		Address:  1,
		Function: FunctionReadHoldingRegisters | exceptionFlag,
		Payload:  []byte{ExceptionIllegalDataAddress},
	})
	st := &scriptedTransporter{reads: [][]byte{res}}
	tr := newTestTransactor(st, 100*time.Millisecond, 5)

	q, err := ReadHoldingRegisters(1, 0, 1)
	require.NoError(t, err)
	txn := tr.newTransaction(q)

	_, err = tr.execute(txn)
	var exc *ExceptionError
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, ExceptionIllegalDataAddress, exc.Code)
	assert.Equal(t, TransactionFailed, txn.Status)
	assert.Equal(t, 1, st.writeCount())
}

func TestTransactionTransportError(t *testing.T) {
	wireErr := errors.New("device unplugged")
	st := &scriptedTransporter{readErr: wireErr}
	tr := newTestTransactor(st, 100*time.Millisecond, 5)

	q, err := ReadHoldingRegisters(1, 0, 1)
	require.NoError(t, err)
	txn := tr.newTransaction(q)

	_, err = tr.execute(txn)
	require.ErrorIs(t, err, wireErr)
	assert.Equal(t, TransactionFailed, txn.Status)
	assert.Equal(t, 1, st.writeCount())
}

func TestTransactionStatusString(t *testing.T) {
	assert.Equal(t, "Pending", TransactionPending.String())
	assert.Equal(t, "TimedOut", TransactionTimedOut.String())
	assert.Equal(t, "TransactionStatus(99)", TransactionStatus(99).String())
}
