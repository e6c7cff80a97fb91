package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/scietex/modbus/logger"
)

// TransactionStatus is the lifecycle state of a Transaction.
type TransactionStatus uint8

// A Transaction starts Pending and reaches exactly one terminal status.
const (
	TransactionPending TransactionStatus = iota
	TransactionCompleted
	TransactionFailed
	TransactionTimedOut
	TransactionCancelled
)

var transactionStatusNames = map[TransactionStatus]string{
	TransactionPending:   "Pending",
	TransactionCompleted: "Completed",
	TransactionFailed:    "Failed",
	TransactionTimedOut:  "TimedOut",
	TransactionCancelled: "Cancelled",
}

func (s TransactionStatus) String() string {
	if name, ok := transactionStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TransactionStatus(%d)", uint8(s))
}

// Transaction identifies one outstanding request/response exchange. The ID is
// a logical correlation key local to the client; it is not present on the
// wire for the serial protocol family. Responses are instead matched by unit
// address and function code.
type Transaction struct {
	ID       uint64
	Query    Query
	Status   TransactionStatus
	Retries  int
	Deadline time.Time
}

// transactor executes transactions over a single transport session. Only one
// transaction may be in flight on a session at a time; the protocol is not
// pipelined, so the client serializes submissions through its query queue and
// each call to execute runs to a terminal status before the next begins.
type transactor struct {
	packager    Packager
	transporter Transporter
	timeout     time.Duration
	maxRetries  int
	log         logger.Logger

	lastID uint64
}

// newTransaction registers a new Pending transaction for q under a fresh id.
func (t *transactor) newTransaction(q Query) *Transaction {
	t.lastID++
	return &Transaction{
		ID:     t.lastID,
		Query:  q,
		Status: TransactionPending,
	}
}

// execute drives txn to a terminal status and returns the decoded response
// data. A response that arrives and decodes transitions the transaction to
// Completed, or to Failed when the frame fails its checksum, is malformed, or
// is a protocol exception; decode failures are never silently retried. When
// no complete matching frame arrives before the deadline the transaction
// becomes TimedOut and is re-sent with a fresh deadline, up to maxRetries
// times, before the caller receives ErrTimeout.
func (t *transactor) execute(txn *Transaction) ([]byte, error) {
	adu, err := t.packager.EncodeRequest(txn.Query)
	if err != nil {
		txn.Status = TransactionFailed
		return nil, err
	}

	for {
		txn.Deadline = time.Now().Add(t.timeout)
		t.log.Debug("tx", "id", txn.ID, "frame", fmt.Sprintf("% X", adu))
		if _, err := t.transporter.Write(adu); err != nil {
			txn.Status = TransactionFailed
			return nil, err
		}

		f, err := t.readFrame(txn.Deadline)
		if err == nil {
			data, err := txn.Query.checkResponse(f)
			if err != nil {
				txn.Status = TransactionFailed
				return nil, err
			}
			txn.Status = TransactionCompleted
			return data, nil
		}

		if !errors.Is(err, ErrTimeout) {
			txn.Status = TransactionFailed
			return nil, err
		}
		txn.Status = TransactionTimedOut
		if txn.Retries >= t.maxRetries {
			return nil, fmt.Errorf("%w after %d attempts", ErrTimeout, txn.Retries+1)
		}
		txn.Retries++
		txn.Status = TransactionPending
		t.log.Debug("retrying", "id", txn.ID, "retry", txn.Retries)
	}
}

// readFrame accumulates transport bytes until the packager recognizes one
// complete, validated frame or the deadline passes. Partial frames keep the
// accumulation going; checksum mismatches and malformed frames are terminal
// and surface to execute as transaction failures.
func (t *transactor) readFrame(deadline time.Time) (Frame, error) {
	var buf []byte
	tmp := make([]byte, MaxASCIISize)
	for {
		if !time.Now().Before(deadline) {
			return Frame{}, ErrTimeout
		}
		t.transporter.SetReadDeadline(deadline)

		n, err := t.transporter.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			f, _, derr := t.packager.DecodeResponse(buf)
			if derr == nil {
				t.log.Debug("rx", "address", f.Address,
					"function", fmt.Sprintf("0x%02X", byte(f.Function)))
				return f, nil
			}
			if !errors.Is(derr, ErrShortFrame) {
				return Frame{}, derr
			}
		}
		if err != nil && !isTimeout(err) {
			// Transport-level failure, surfaced unchanged.
			return Frame{}, err
		}
	}
}
