package broker

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/meshgate/platform/internal/apperr"
)

// Journal is a durable, file-backed FIFO of serialized Exchange bytes. It
// satisfies the append/iterate/clear/append_all/flush contract from the
// "Journal abstraction" design note: any backend implementing these five
// operations preserves the invariants in spec §3 (crash-safety, FIFO
// order across restart, non-consuming iteration).
//
// On-disk shape: a sequence of (uint32 length, []byte record) frames.
// Append/Iter/Clear/AppendAll work on an in-memory copy of the records;
// only Flush touches the file, writing a temp file and os.Rename-ing it
// over the original, so a reader never observes a partially written
// journal.
type Journal struct {
	mu   sync.Mutex
	path string
	buf  [][]byte // in-memory pending writes, flushed to disk by Sync
}

// OpenJournal opens (creating if absent) the journal file queue.qf in
// dir and replays any previously flushed records into memory, so that
// Iter immediately reflects everything written before a crash/restart.
func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.CodeJournalOpen, "create journal directory", err)
	}
	path := filepath.Join(dir, "queue.qf")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeJournalOpen, "open journal file", err)
	}
	defer f.Close()

	records, err := readFrames(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeJournalOpen, "replay journal file", err)
	}

	return &Journal{path: path, buf: records}, nil
}

// Append adds one serialized record to the in-memory tail. It is not
// durable until Flush (sync_queue_file) is called.
func (j *Journal) Append(record []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf = append(j.buf, record)
	return nil
}

// Iter returns a snapshot of all pending records in FIFO order without
// consuming them.
func (j *Journal) Iter() [][]byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([][]byte, len(j.buf))
	copy(out, j.buf)
	return out
}

// Clear discards all pending records.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf = nil
}

// AppendAll atomically replaces the pending records with survivors,
// used by the dispatch pass to rewrite the journal to just the
// not-yet-consumed entries (spec §4.1 step 5).
func (j *Journal) AppendAll(records [][]byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf = records
}

// Flush durably persists the current in-memory state to disk via a
// write-to-temp-then-rename, so the file is never observed half written.
func (j *Journal) Flush() error {
	j.mu.Lock()
	records := make([][]byte, len(j.buf))
	copy(records, j.buf)
	j.mu.Unlock()

	tmp := j.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return apperr.Wrap(apperr.CodeJournalWrite, "open temp journal file", err)
	}

	w := bufio.NewWriter(f)
	for _, rec := range records {
		if err := writeFrame(w, rec); err != nil {
			f.Close()
			return apperr.Wrap(apperr.CodeJournalWrite, "write journal frame", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return apperr.Wrap(apperr.CodeJournalWrite, "flush journal buffer", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return apperr.Wrap(apperr.CodeJournalWrite, "fsync journal file", err)
	}
	if err := f.Close(); err != nil {
		return apperr.Wrap(apperr.CodeJournalWrite, "close journal file", err)
	}

	if err := os.Rename(tmp, j.path); err != nil {
		return apperr.Wrap(apperr.CodeJournalRewrite, "rename journal file", err)
	}
	return nil
}

func writeFrame(w *bufio.Writer, record []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(record)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := w.Write(record)
	return err
}

func readFrames(f *os.File) ([][]byte, error) {
	r := bufio.NewReader(f)
	var records [][]byte
	for {
		var length [4]byte
		if _, err := io.ReadFull(r, length[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read frame length: %w", err)
		}
		n := binary.BigEndian.Uint32(length[:])
		rec := make([]byte, n)
		if _, err := io.ReadFull(r, rec); err != nil {
			return nil, fmt.Errorf("read frame body: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
