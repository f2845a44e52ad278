// Package journal implements the completion journal: the durable,
// crash-safe record mapping obligation id to the transaction id and
// timestamp that completed it. An entry's presence is authoritative — once
// written, the Engine must never process that obligation again.
//
// The on-disk form is an append-only file of length-prefixed records,
// rewritten atomically on mutation (write to sibling, fsync, rename). An
// embedded single-table database would serve the same contract; this
// package uses a flat file instead so an operator can inspect completions
// without a database client.
package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/poolcore/disburser/disperr"
	"github.com/poolcore/disburser/model"
)

// record is the on-disk, length-prefixed, JSON-encoded shape of one
// JournalEntry. JSON, rather than a binary struct layout, keeps the file
// readable by an operator with nothing but a text editor.
type record struct {
	ObligationID  int64     `json:"paymentId"`
	TransactionID string    `json:"transactionId"`
	CompletedAt   time.Time `json:"completedAt"`
}

// Journal is a crash-safe, in-process-serialized store of completed
// obligations. All four operations are mutually exclusive with one
// another, guarded by a single mutex.
type Journal struct {
	mu      sync.Mutex
	path    string
	entries map[int64]model.JournalEntry
}

// Open loads path (creating it if absent) and returns a ready Journal. The
// entire file is read into memory at startup — completion journals are
// bounded by the number of obligations the pool will ever pay, not by chain
// history, so this is not expected to grow unreasonably large.
func Open(path string) (*Journal, error) {
	j := &Journal{path: path, entries: make(map[int64]model.JournalEntry)}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) load() error {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("journal: open %s: %w", j.path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("journal: read length prefix: %w", err)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("journal: read record body: %w", err)
		}
		var rec record
		if err := json.Unmarshal(buf, &rec); err != nil {
			return fmt.Errorf("journal: decode record: %w", err)
		}
		j.entries[rec.ObligationID] = model.JournalEntry{
			ObligationID:  rec.ObligationID,
			TransactionID: rec.TransactionID,
			CompletedAt:   rec.CompletedAt,
		}
	}
	return nil
}

// IsCompleted reports whether id already has a journal entry.
func (j *Journal) IsCompleted(id int64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.entries[id]
	return ok
}

// TransactionOf returns the txid journaled for id, if any.
func (j *Journal) TransactionOf(id int64) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.entries[id]
	if !ok {
		return "", false
	}
	return e.TransactionID, true
}

// MarkCompleted records that id was paid in full by txid. Calling it again
// with the same (id, txid) pair is a silent no-op (idempotent). Calling it
// with a different txid for an id that already has an entry is rejected as
// disperr.JournalConflict and does not overwrite the existing entry — the
// existing entry wins and the obligation is treated as already completed.
func (j *Journal) MarkCompleted(id int64, txid string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if existing, ok := j.entries[id]; ok {
		if existing.TransactionID == txid {
			return nil
		}
		return &disperr.JournalConflict{
			ObligationID:  id,
			ExistingTxID:  existing.TransactionID,
			AttemptedTxID: txid,
		}
	}

	entry := model.JournalEntry{ObligationID: id, TransactionID: txid, CompletedAt: time.Now().UTC()}
	j.entries[id] = entry
	if err := j.rewrite(); err != nil {
		delete(j.entries, id)
		return err
	}
	return nil
}

// rewrite serializes every entry to a sibling temp file, fsyncs it, and
// renames it over the journal path, so a crash mid-write never corrupts
// the existing file. Must be called with j.mu held.
func (j *Journal) rewrite() error {
	dir := filepath.Dir(j.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(j.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("journal: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	w := bufio.NewWriter(tmp)
	for _, e := range j.entries {
		rec := record{ObligationID: e.ObligationID, TransactionID: e.TransactionID, CompletedAt: e.CompletedAt}
		body, err := json.Marshal(rec)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("journal: encode record: %w", err)
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(body))); err != nil {
			tmp.Close()
			return fmt.Errorf("journal: write length prefix: %w", err)
		}
		if _, err := w.Write(body); err != nil {
			tmp.Close()
			return fmt.Errorf("journal: write record body: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("journal: flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("journal: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("journal: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return fmt.Errorf("journal: rename into place: %w", err)
	}
	return nil
}

// Snapshot returns every entry currently in the journal, for operator
// tooling; it is not called from the Engine's hot path.
func (j *Journal) Snapshot() []model.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]model.JournalEntry, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e)
	}
	return out
}
