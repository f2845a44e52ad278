// Package disperr defines the classified error taxonomy the disburser's
// components use instead of ad-hoc string errors or catch-all exception
// handling. Classified failures satisfy errors.Is/errors.As against one of
// the sentinel or typed errors declared here: plain sentinels where no extra
// data is needed, small structs with an Error() method where the caller
// benefits from structured fields. Other failures, such as request
// encoding or response decoding errors, are plain wrapped errors.
package disperr

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Sentinel errors with no associated data.
var (
	// ErrBroadcastRejected is returned when the node refuses a fully
	// signed transaction outright.
	ErrBroadcastRejected = goerrors.New("broadcast rejected by node")

	// ErrInvalidAddress is returned when an obligation's address fails
	// validation.
	ErrInvalidAddress = goerrors.New("invalid address")

	// ErrInvalidAmount is returned when an obligation's amount is not
	// strictly positive.
	ErrInvalidAmount = goerrors.New("invalid amount: must be strictly positive")

	// ErrNoUtxos is returned by selection when the spendable set is
	// empty.
	ErrNoUtxos = goerrors.New("no spendable utxos available")
)

// TransportTimeout indicates an I/O call against the chain or pool exceeded
// its configured timeout.
type TransportTimeout struct {
	Op  string
	Err error
}

func (e *TransportTimeout) Error() string {
	return fmt.Sprintf("transport timeout during %s: %v", e.Op, e.Err)
}

func (e *TransportTimeout) Unwrap() error { return e.Err }

// TransportRefused indicates the underlying connection was refused or reset
// before a response was obtained.
type TransportRefused struct {
	Op  string
	Err error
}

func (e *TransportRefused) Error() string {
	return fmt.Sprintf("transport refused during %s: %v", e.Op, e.Err)
}

func (e *TransportRefused) Unwrap() error { return e.Err }

// NodeRpcError wraps an application-level error the chain node's JSON-RPC
// endpoint returned (as opposed to a transport failure).
type NodeRpcError struct {
	Method string
	Code   int
	Msg    string
}

func (e *NodeRpcError) Error() string {
	return fmt.Sprintf("node rpc error on %s: code=%d msg=%s", e.Method, e.Code, e.Msg)
}

// SigningFailed is returned when the node's signer did not complete the
// transaction.
type SigningFailed struct {
	Errors []string
}

func (e *SigningFailed) Error() string {
	return fmt.Sprintf("signing did not complete: %v", e.Errors)
}

// InsufficientFunds is returned when the wallet balance, or the spendable
// UTXO set, cannot cover a required amount.
type InsufficientFunds struct {
	Required  interface{ String() string }
	Available interface{ String() string }
	UtxoCount int
}

func (e *InsufficientFunds) Error() string {
	if e.UtxoCount > 0 {
		return fmt.Sprintf("insufficient funds: required=%s available=%s across %d utxos",
			e.Required, e.Available, e.UtxoCount)
	}
	return fmt.Sprintf("insufficient funds: required=%s available=%s", e.Required, e.Available)
}

// WalletNotFound is a fatal preflight error: the configured wallet name is
// not among the node's known wallets.
type WalletNotFound struct {
	Configured string
	Available  []string
}

func (e *WalletNotFound) Error() string {
	return fmt.Sprintf("configured wallet %q not found among available wallets %v",
		e.Configured, e.Available)
}

// JournalConflict is returned when the journal is asked to record a second,
// different transaction id for an obligation that already has an entry.
type JournalConflict struct {
	ObligationID  int64
	ExistingTxID  string
	AttemptedTxID string
}

func (e *JournalConflict) Error() string {
	return fmt.Sprintf("journal conflict for obligation %d: existing=%s attempted=%s",
		e.ObligationID, e.ExistingTxID, e.AttemptedTxID)
}

// Wrap attaches a stack trace to err using go-errors, for errors that abort
// a batch and are worth an operator being able to see the originating call
// site in logs. Per-broadcast errors that the engine recovers from locally
// (streaming dispatch) are logged without a wrapped stack trace to avoid
// noise; Wrap is used on the batch-abort path and for preflight failures.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}
