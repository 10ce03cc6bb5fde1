package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/jonwraymond/callgate/keys"
)

// DefaultMaxRecordSize bounds a single journal line.
const DefaultMaxRecordSize = 16 << 20

// Option configures a Journal.
type Option func(*options)

type options struct {
	sync          bool
	mode          os.FileMode
	maxRecordSize int
}

// WithSync fsyncs the journal after every record.
func WithSync(enabled bool) Option {
	return func(o *options) {
		o.sync = enabled
	}
}

// WithFileMode sets the permissions of a newly created journal.
// Default: 0600.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithMaxRecordSize bounds a single record. Longer lines are corrupt.
func WithMaxRecordSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRecordSize = n
		}
	}
}

// Journal is an append-only, single-writer record of cache mutations.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ordering: Entries reflects records in the order they were written.
type Journal struct {
	mu   sync.Mutex
	path string
	opts options
	file *os.File

	// state holds the live entry per canonical key, least recent first.
	state   *simplelru.LRU[string, Entry]
	records int
	closed  bool
}

// Open opens or creates the journal at path and replays it. Any unreadable
// record fails Open with ErrCorrupt.
func Open(path string, opts ...Option) (*Journal, error) {
	o := options{mode: 0o600, maxRecordSize: DefaultMaxRecordSize}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &PersistenceError{Op: "open", Path: path, Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, o.mode)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Path: path, Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}

	state, err := simplelru.NewLRU[string, Entry](math.MaxInt, nil)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	j := &Journal{path: path, opts: o, file: f, state: state}
	if err := j.replay(); err != nil {
		_ = f.Close()
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	return j, nil
}

func (j *Journal) replay() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	r := bufio.NewReader(j.file)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			line, err = readLong(r, line, j.opts.maxRecordSize)
		}
		switch {
		case errors.Is(err, io.EOF):
			if len(line) > 0 {
				return fmt.Errorf("%w: line %d: truncated record", ErrCorrupt, lineNo)
			}
			return nil
		case err != nil:
			return fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, err)
		}

		line = line[:len(line)-1]
		if len(line) == 0 {
			continue
		}
		rec, err := decodeRecord(line)
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, err)
		}
		j.apply(rec)
		j.records++
	}
}

var errTooLong = errors.New("record exceeds maximum size")

func readLong(r *bufio.Reader, head []byte, limit int) ([]byte, error) {
	line := append([]byte(nil), head...)
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > limit {
			return nil, errTooLong
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return line, err
		}
	}
}

func (j *Journal) apply(r record) {
	switch r.Op {
	case OpPut:
		j.state.Add(r.Canonical, r.entry())
	case OpEvict:
		j.state.Remove(r.Canonical)
	}
}

// Path returns the journal's file path.
func (j *Journal) Path() string {
	return j.path
}

// Entries returns the live entries, least recently written first.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.Values()
}

// Len returns the number of live entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.Len()
}

// Records returns the number of records in the file, including superseded
// ones. Compact reduces it to Len.
func (j *Journal) Records() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.records
}

// Put appends a put record for e.
func (j *Journal) Put(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec := putRecord(e)
	if err := j.append("put", rec); err != nil {
		return err
	}
	j.apply(rec)
	return nil
}

// Evict appends an evict record for key.
func (j *Journal) Evict(key keys.CallKey) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec := evictRecord(key)
	if err := j.append("evict", rec); err != nil {
		return err
	}
	j.apply(rec)
	return nil
}

// Reset truncates the journal.
func (j *Journal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return &PersistenceError{Op: "reset", Path: j.path, Err: ErrClosed}
	}
	if err := j.file.Truncate(0); err != nil {
		return &PersistenceError{Op: "reset", Path: j.path, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
	}
	if err := j.syncFile(); err != nil {
		return &PersistenceError{Op: "reset", Path: j.path, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
	}
	j.state.Purge()
	j.records = 0
	return nil
}

func (j *Journal) append(op string, rec record) error {
	if j.closed {
		return &PersistenceError{Op: op, Path: j.path, Err: ErrClosed}
	}
	line, err := rec.encode()
	if err != nil {
		return &PersistenceError{Op: op, Path: j.path, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
	}
	if _, err := j.file.Write(line); err != nil {
		return &PersistenceError{Op: op, Path: j.path, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
	}
	if err := j.syncFile(); err != nil {
		return &PersistenceError{Op: op, Path: j.path, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
	}
	j.records++
	return nil
}

func (j *Journal) syncFile() error {
	if !j.opts.sync {
		return nil
	}
	return j.file.Sync()
}

// Compact atomically replaces the journal with one put record per entry,
// in the given order.
func (j *Journal) Compact(entries []Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return &PersistenceError{Op: "compact", Path: j.path, Err: ErrClosed}
	}
	if err := j.compact(entries); err != nil {
		return &PersistenceError{Op: "compact", Path: j.path, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
	}
	return nil
}

func (j *Journal) compact(entries []Entry) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(j.path), filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	recs := make([]record, len(entries))
	for i, e := range entries {
		recs[i] = putRecord(e)
		line, err := recs[i].encode()
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Chmod(j.opts.mode); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return err
	}

	f, err := os.OpenFile(j.path, os.O_RDWR|os.O_APPEND, j.opts.mode)
	if err != nil {
		return err
	}
	_ = j.file.Close()
	j.file = f

	j.state.Purge()
	for _, r := range recs {
		j.apply(r)
	}
	j.records = len(recs)
	return nil
}

// Close closes the journal file. Closing twice is a no-op.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.file.Close(); err != nil {
		return &PersistenceError{Op: "close", Path: j.path, Err: err}
	}
	return nil
}
