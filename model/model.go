// Package model holds the data types shared across the disburser's
// components: Obligation, UnspentOutput, JournalEntry, and PaymentResult.
// Keeping them in one leaf package avoids the chain gateway, pool gateway,
// journal and engine packages needing to import one another just to share
// a struct definition.
package model

import (
	"time"

	"github.com/poolcore/disburser/amount"
)

// Obligation is an immutable record supplied by the pool: a miner is owed
// amount, to be paid to address. An Obligation is never mutated by the
// core; id identifies it for its entire lifetime.
type Obligation struct {
	ID        int64
	Address   string
	Amount    amount.Amount
	CreatedAt time.Time
}

// UnspentOutput is a candidate input reported by the chain node's
// list-unspent call.
type UnspentOutput struct {
	TxID          string
	Vout          uint32
	Amount        amount.Amount
	Confirmations int64
	Spendable     bool
	Solvable      bool
	Address       string
	ScriptPubKey  string
}

// IsSelectable reports whether u may be selected as an input, given the
// configured minimum confirmation count.
func (u UnspentOutput) IsSelectable(minConfirmations int64) bool {
	return u.Spendable && u.Confirmations >= minConfirmations
}

// JournalEntry is the durable record of one fully completed obligation.
type JournalEntry struct {
	ObligationID  int64
	TransactionID string
	CompletedAt   time.Time
}

// PaymentStatus is the terminal state of an obligation within one Engine
// invocation.
type PaymentStatus int

const (
	// StatusSucceeded means the obligation was fully paid in this
	// invocation (or completed the tail of a prior partial payment) and
	// is now journaled.
	StatusSucceeded PaymentStatus = iota

	// StatusAlreadyCompleted means the journal already held an entry for
	// this obligation before the batch touched the chain.
	StatusAlreadyCompleted

	// StatusPartiallyPaid means the batch ended with progress short of
	// the full amount; the obligation remains un-journaled and will be
	// retried on the next invocation.
	StatusPartiallyPaid

	// StatusFailed means validation failed or the batch aborted before
	// any chain write specific to this obligation occurred.
	StatusFailed
)

// String renders the status for logs and operator-facing output.
func (s PaymentStatus) String() string {
	switch s {
	case StatusSucceeded:
		return "Succeeded"
	case StatusAlreadyCompleted:
		return "AlreadyCompleted"
	case StatusPartiallyPaid:
		return "PartiallyPaid"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PaymentResult is returned per obligation at the end of an Engine
// invocation.
type PaymentResult struct {
	ObligationID    int64
	Status          PaymentStatus
	CompletedAmount amount.Amount
	TransactionIDs  []string
	Err             error
}
