package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalAppendIterClear(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir)
	require.NoError(t, err)

	require.NoError(t, j.Append([]byte("a")))
	require.NoError(t, j.Append([]byte("b")))

	entries := j.Iter()
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, entries)

	// Iteration does not consume.
	assert.Equal(t, entries, j.Iter())

	j.Clear()
	assert.Empty(t, j.Iter())
}

func TestJournalAppendAllPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir)
	require.NoError(t, err)

	j.AppendAll([][]byte{[]byte("x"), []byte("y"), []byte("z")})
	assert.Equal(t, [][]byte{[]byte("x"), []byte("y"), []byte("z")}, j.Iter())
}

func TestJournalCrashRecovery(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenJournal(dir)
	require.NoError(t, err)

	for _, rec := range [][]byte{[]byte("r1"), []byte("r2"), []byte("r3")} {
		require.NoError(t, j.Append(rec))
	}
	require.NoError(t, j.Flush())

	// Simulate a restart: a brand-new Journal opened against the same dir
	// must see all previously flushed entries, in order.
	reopened, err := OpenJournal(dir)
	require.NoError(t, err)

	assert.Equal(t, [][]byte{[]byte("r1"), []byte("r2"), []byte("r3")}, reopened.Iter())
}

func TestJournalFlushThenClearIsDurable(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenJournal(dir)
	require.NoError(t, err)
	require.NoError(t, j.Append([]byte("stale")))
	require.NoError(t, j.Flush())

	j.Clear()
	require.NoError(t, j.Flush())

	reopened, err := OpenJournal(dir)
	require.NoError(t, err)
	assert.Empty(t, reopened.Iter())
}
