package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poolcore/disburser/disperr"
)

func TestMarkCompletedThenIsCompleted(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "journal.dat"))
	require.NoError(t, err)

	require.False(t, j.IsCompleted(42))
	require.NoError(t, j.MarkCompleted(42, "tx1"))
	require.True(t, j.IsCompleted(42))

	txid, ok := j.TransactionOf(42)
	require.True(t, ok)
	require.Equal(t, "tx1", txid)
}

func TestMarkCompletedIdempotent(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "journal.dat"))
	require.NoError(t, err)

	require.NoError(t, j.MarkCompleted(1, "tx1"))
	require.NoError(t, j.MarkCompleted(1, "tx1"))
}

func TestMarkCompletedConflict(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "journal.dat"))
	require.NoError(t, err)

	require.NoError(t, j.MarkCompleted(1, "tx1"))
	err = j.MarkCompleted(1, "tx2")
	require.Error(t, err)
	var conflict *disperr.JournalConflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "tx1", conflict.ExistingTxID)

	// The original entry must survive a rejected conflicting write.
	txid, ok := j.TransactionOf(1)
	require.True(t, ok)
	require.Equal(t, "tx1", txid)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.dat")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.MarkCompleted(1, "tx1"))
	require.NoError(t, j.MarkCompleted(2, "tx2"))

	reopened, err := Open(path)
	require.NoError(t, err)
	require.True(t, reopened.IsCompleted(1))
	require.True(t, reopened.IsCompleted(2))
	require.Len(t, reopened.Snapshot(), 2)
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "nonexistent.dat"))
	require.NoError(t, err)
	require.Empty(t, j.Snapshot())
}
