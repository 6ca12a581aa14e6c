package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/civil-violence/internal/engine"
)

// ArchiveWriter appends tick records to a zstd-compressed JSONL file, one
// record per line. Safe for concurrent use.
type ArchiveWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// CreateArchive creates (or truncates) the archive at path.
func CreateArchive(path string) (*ArchiveWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &ArchiveWriter{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// WriteRecord appends one record.
func (a *ArchiveWriter) WriteRecord(rec engine.TickRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.w == nil {
		return fmt.Errorf("archive closed")
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := a.w.Write(b); err != nil {
		return err
	}
	return a.w.WriteByte('\n')
}

// Close flushes and closes the archive.
func (a *ArchiveWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.w == nil {
		return nil
	}
	var firstErr error
	if err := a.w.Flush(); err != nil {
		firstErr = err
	}
	if err := a.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	a.w, a.enc, a.f = nil, nil, nil
	return firstErr
}

// ReadArchive decodes every record in the archive at path.
func ReadArchive(path string) ([]engine.TickRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var out []engine.TickRecord
	for line := 1; sc.Scan(); line++ {
		var rec engine.TickRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: unmarshal: %w", filepath.Base(path), line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}
