package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// ConsoleSink prints each entry as one line to an io.Writer: a compact JSON
// object when structured output is on, otherwise a short human-readable form.
type ConsoleSink struct {
	mu         sync.Mutex
	out        io.Writer
	structured bool
}

func NewConsoleSink(out io.Writer, structured bool) *ConsoleSink {
	return &ConsoleSink{out: out, structured: structured}
}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Emit(ctx context.Context, entry *domain.AuditEntry) error {
	var line []byte
	if s.structured {
		b, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		line = b
	} else {
		line = []byte(fmt.Sprintf("%s AUDIT [%s] %s %s actor=%s resource=%s",
			entry.Timestamp.UTC().Format(time.RFC3339),
			entry.Event.Type, entry.Event.Action, entry.Event.Outcome,
			entry.Event.NormalizedActorID(), entry.Event.NormalizedResourceID()))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.out.Write(append(line, '\n'))
	return err
}

// FileSink appends entries as JSON lines to its own file, independent of any
// file store. Writes are fire-and-forget from the logger's perspective.
type FileSink struct {
	mu   sync.Mutex
	path string
}

func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("file sink: %w", domain.ErrMissingFilePath)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sink directory: %w", err)
		}
	}
	return &FileSink{path: path}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Emit(ctx context.Context, entry *domain.AuditEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// webhookTimeout bounds a single delivery so a hung endpoint cannot stall
// Logger.Log indefinitely.
const webhookTimeout = 10 * time.Second

// WebhookSink POSTs each entry as a JSON body. Caller-supplied headers are
// merged in but never override Content-Type.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func NewWebhookSink(url string, headers map[string]string) (*WebhookSink, error) {
	if url == "" {
		return nil, errors.New("webhook sink requires a url")
	}
	return &WebhookSink{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: webhookTimeout},
	}, nil
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Emit(ctx context.Context, entry *domain.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range s.headers {
		if http.CanonicalHeaderKey(k) == "Content-Type" {
			continue
		}
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// CustomSink wraps an opaque caller-supplied handler.
type CustomSink struct {
	handler func(ctx context.Context, entry *domain.AuditEntry) error
}

func NewCustomSink(handler func(ctx context.Context, entry *domain.AuditEntry) error) (*CustomSink, error) {
	if handler == nil {
		return nil, errors.New("custom sink requires a handler")
	}
	return &CustomSink{handler: handler}, nil
}

func (s *CustomSink) Name() string { return "custom" }

func (s *CustomSink) Emit(ctx context.Context, entry *domain.AuditEntry) error {
	return s.handler(ctx, entry)
}
