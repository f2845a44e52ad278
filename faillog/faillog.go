// Package faillog implements the append-only failed-payment log: one
// pipe-separated line per obligation that the Engine
// could not fully journal within a batch (Failed or PartiallyPaid). It is
// operator-visible state, never read back by the Engine itself.
package faillog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/model"
)

// Writer appends residual-payment lines to a single log file.
type Writer struct {
	mu   sync.Mutex
	path string
}

// Open opens (creating if necessary) the failed-payment log at path for
// appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("faillog: open %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("faillog: close after create %s: %w", path, err)
	}
	return &Writer{path: path}, nil
}

// Record appends one line for an obligation that ended its batch without
// being journaled: timestamp|obligation_id|address|required|completed|
// remaining|all_txids|reason.
func (w *Writer) Record(o model.Obligation, completed amount.Amount, txids []string, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("faillog: open for append: %w", err)
	}
	defer f.Close()

	remaining := o.Amount.Sub(completed)
	line := strings.Join([]string{
		time.Now().UTC().Format(time.RFC3339),
		fmt.Sprintf("%d", o.ID),
		o.Address,
		o.Amount.String(),
		completed.String(),
		remaining.String(),
		strings.Join(txids, ","),
		reason,
	}, "|")

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("faillog: write line: %w", err)
	}
	return f.Sync()
}
