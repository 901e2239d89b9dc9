package sink_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/audittrail/pkg/audit/config"
	"github.com/spounge-ai/audittrail/pkg/audit/domain"
	"github.com/spounge-ai/audittrail/pkg/audit/sink"
	"github.com/spounge-ai/audittrail/pkg/audittest"
)

func testEntry() *domain.AuditEntry {
	return &domain.AuditEntry{
		ID:        "entry-1",
		Timestamp: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC),
		Event: domain.AuditEvent{
			Type:    domain.EventAPIAccess,
			Action:  "get-profile",
			Outcome: domain.OutcomeSuccess,
			ActorID: "alice",
		},
	}
}

func TestConsoleSinkStructured(t *testing.T) {
	var buf bytes.Buffer
	s := sink.NewConsoleSink(&buf, true)
	require.NoError(t, s.Emit(context.Background(), testEntry()))

	var decoded domain.AuditEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "entry-1", decoded.ID)
}

func TestConsoleSinkPlain(t *testing.T) {
	var buf bytes.Buffer
	s := sink.NewConsoleSink(&buf, false)
	require.NoError(t, s.Emit(context.Background(), testEntry()))

	out := buf.String()
	assert.Contains(t, out, "AUDIT")
	assert.Contains(t, out, "get-profile")
	assert.Contains(t, out, "actor=alice")
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink", "audit.jsonl")
	s, err := sink.NewFileSink(path)
	require.NoError(t, err)

	require.NoError(t, s.Emit(context.Background(), testEntry()))
	require.NoError(t, s.Emit(context.Background(), testEntry()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestWebhookSinkWireContract(t *testing.T) {
	var gotContentType, gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := sink.NewWebhookSink(srv.URL, map[string]string{
		"Authorization": "Bearer tok",
		"content-type":  "text/plain", // must not override
	})
	require.NoError(t, err)
	require.NoError(t, s.Emit(context.Background(), testEntry()))

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Bearer tok", gotAuth)
	var decoded domain.AuditEntry
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "entry-1", decoded.ID)
}

func TestWebhookSinkNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := sink.NewWebhookSink(srv.URL, nil)
	require.NoError(t, err)
	err = s.Emit(context.Background(), testEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestWriterIsolatesFailingSinks(t *testing.T) {
	capture := &audittest.CaptureSink{}
	failing, err := sink.NewCustomSink(func(ctx context.Context, entry *domain.AuditEntry) error {
		return errors.New("boom")
	})
	require.NoError(t, err)
	panicking, err := sink.NewCustomSink(func(ctx context.Context, entry *domain.AuditEntry) error {
		panic("sink exploded")
	})
	require.NoError(t, err)
	ok, err := sink.NewCustomSink(capture.Handler())
	require.NoError(t, err)

	w := sink.NewWriterWithSinks(nil, failing, panicking, ok)
	w.Publish(context.Background(), testEntry())

	// The healthy sink still got the entry and Publish returned normally.
	assert.Equal(t, 1, capture.Len())
}

func TestNewWriterBuildsConfiguredSinks(t *testing.T) {
	capture := &audittest.CaptureSink{}
	w, err := sink.NewWriter([]config.SinkConfig{
		{Type: config.SinkConsole},
		{Type: config.SinkFile, Path: filepath.Join(t.TempDir(), "audit.jsonl")},
		{Type: config.SinkCustom, Handler: capture.Handler()},
	}, true, nil)
	require.NoError(t, err)
	assert.Len(t, w.Sinks(), 3)
}

func TestNewWriterRejectsUnknownSink(t *testing.T) {
	_, err := sink.NewWriter([]config.SinkConfig{{Type: "carrier-pigeon"}}, true, nil)
	require.ErrorIs(t, err, domain.ErrUnknownSink)
}

func TestCustomSinkRequiresHandler(t *testing.T) {
	_, err := sink.NewCustomSink(nil)
	require.Error(t, err)
}
