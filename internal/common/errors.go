package common

import "fmt"

// PreconditionError means the user or environment is not ready for the
// requested action (wallet disconnected, wrong network, order not locked).
// It is always raised before any transaction is built.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

// Preconditionf builds a PreconditionError with a formatted reason.
func Preconditionf(format string, args ...any) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// SubmissionError means the wallet or RPC layer rejected or failed to
// broadcast the EVM transaction. The underlying message is surfaced to the
// user verbatim.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transaction submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IndexingError means the best-effort native-ledger mirror transaction failed
// after the EVM leg already succeeded. Logged only, never propagated as a
// payment failure.
type IndexingError struct {
	Err error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing transaction failed: %v", e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

// NetworkError means a read call against the native ledger's HTTP API failed
// at the transport level. Callers decide whether to retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
