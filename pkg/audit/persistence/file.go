package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// FileStore buffers writes in memory and appends them as newline-delimited
// JSON to a single file, flushing when the buffer fills or the flush
// interval elapses, whichever comes first. Query forces a flush before
// reading so callers always see their own writes. Close must be called
// before process exit or buffered entries are lost.
type FileStore struct {
	path          string
	bufferSize    int
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	buf    []*domain.AuditEntry
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

const (
	defaultFileBufferSize    = 100
	defaultFileFlushInterval = time.Second
)

// NewFileStore opens (creating parent directories as needed) a JSONL-backed
// store at path. bufferSize and flushInterval fall back to 100 entries and
// 1s when non-positive.
func NewFileStore(path string, bufferSize int, flushInterval time.Duration, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, domain.ErrMissingFilePath
	}
	if bufferSize <= 0 {
		bufferSize = defaultFileBufferSize
	}
	if flushInterval <= 0 {
		flushInterval = defaultFileFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}

	s := &FileStore{
		path:          path,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		logger:        logger,
		done:          make(chan struct{}),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s, nil
}

// flushLoop drains the buffer on a fixed interval, independent of the write
// path.
func (s *FileStore) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Error("periodic audit flush failed", "path", s.path, "error", err)
			}
		case <-s.done:
			return
		}
	}
}

// Write buffers the entry, flushing synchronously once the buffer reaches
// capacity. When that flush fails the entry is discarded, not requeued: the
// caller is told the entry was not persisted, so it must never surface from a
// later successful flush.
func (s *FileStore) Write(ctx context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	s.buf = append(s.buf, entry)
	full := len(s.buf) >= s.bufferSize
	s.mu.Unlock()

	if full {
		if err := s.Flush(); err != nil {
			s.drop(entry)
			return err
		}
	}
	return nil
}

// Flush appends all buffered entries to the file.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return nil
	}
	pending := s.buf
	s.buf = nil
	s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.requeue(pending)
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	for i, entry := range pending {
		line, err := json.Marshal(entry)
		if err != nil {
			s.logger.Error("failed to marshal audit entry", "id", entry.ID, "error", err)
			continue
		}
		// A failed write may leave a partial line behind; readers skip it as
		// malformed, so requeuing the entry does not duplicate a record.
		if _, err := f.Write(append(line, '\n')); err != nil {
			s.requeue(pending[i:])
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
	}
	return nil
}

// requeue puts entries back at the front of the buffer after a failed flush.
func (s *FileStore) requeue(pending []*domain.AuditEntry) {
	s.mu.Lock()
	s.buf = append(pending, s.buf...)
	s.mu.Unlock()
}

// drop removes the entry from the buffer by identity, if still present.
func (s *FileStore) drop(entry *domain.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.buf {
		if e == entry {
			s.buf = append(s.buf[:i], s.buf[i+1:]...)
			return
		}
	}
}

// Query flushes pending writes, then re-reads the whole file and delegates
// filtering to the shared query engine. Malformed lines are skipped so one
// corrupt record does not hide the rest.
func (s *FileStore) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	entries, err := ReadJSONL(s.path)
	if err != nil {
		return nil, err
	}
	return applyQuery(entries, q), nil
}

// Purge rewrites the file keeping only entries at or after the given
// instant. The rewrite goes through a temp file and rename so a crash cannot
// truncate the log.
func (s *FileStore) Purge(ctx context.Context, before time.Time) (int, error) {
	if err := s.Flush(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := ReadJSONL(s.path)
	if err != nil {
		return 0, err
	}
	kept := entries[:0]
	for _, e := range entries {
		if !e.Timestamp.Before(before) {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open temp audit log: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, e := range kept {
		line, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			f.Close()
			return 0, fmt.Errorf("failed to rewrite audit log: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to rewrite audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return 0, fmt.Errorf("failed to replace audit log: %w", err)
	}
	return removed, nil
}

// Close stops the flush loop and performs a final flush.
func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.Flush()
}

// ReadJSONL parses a newline-delimited JSON audit log. Lines that fail to
// parse are skipped; a missing file yields no entries.
func ReadJSONL(path string) ([]*domain.AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var entries []*domain.AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, nil
}
