// Package sink delivers persisted audit entries to independent output
// destinations: console, file, webhook, S3 and caller-supplied handlers.
// Delivery is best effort: every sink is attempted for every entry, failures
// are isolated per sink and never reach the caller of Logger.Log.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/spounge-ai/audittrail/pkg/audit/config"
	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// Sink is one output destination for audit entries.
type Sink interface {
	// Emit delivers a single entry. Implementations may block on I/O; the
	// writer isolates their failures.
	Emit(ctx context.Context, entry *domain.AuditEntry) error

	// Name identifies the sink in failure reports.
	Name() string
}

// Writer fans entries out to a fixed set of sinks.
type Writer struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewWriter builds the configured sinks. structured selects the console
// sink's output form. An S3 sink resolves AWS credentials from the default
// chain at build time.
func NewWriter(cfgs []config.SinkConfig, structured bool, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sinks := make([]Sink, 0, len(cfgs))
	for _, sc := range cfgs {
		s, err := build(sc, structured)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return &Writer{sinks: sinks, logger: logger}, nil
}

// NewWriterWithSinks wraps already-constructed sinks, for callers that build
// their own (tests, custom S3 clients).
func NewWriterWithSinks(logger *slog.Logger, sinks ...Sink) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{sinks: sinks, logger: logger}
}

func build(sc config.SinkConfig, structured bool) (Sink, error) {
	switch sc.Type {
	case config.SinkConsole:
		return NewConsoleSink(os.Stdout, structured), nil
	case config.SinkFile:
		return NewFileSink(sc.Path)
	case config.SinkWebhook:
		return NewWebhookSink(sc.URL, sc.Headers)
	case config.SinkS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config for s3 sink: %w", err)
		}
		return NewS3Sink(s3.NewFromConfig(awsCfg), sc.Bucket, sc.Prefix)
	case config.SinkCustom:
		return NewCustomSink(sc.Handler)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSink, sc.Type)
	}
}

// Publish delivers the entry to every sink concurrently and waits for all of
// them to settle. A sink returning an error or panicking affects neither the
// other sinks nor the caller; failures are reported through the writer's
// logger only.
func (w *Writer) Publish(ctx context.Context, entry *domain.AuditEntry) {
	var wg sync.WaitGroup
	for _, s := range w.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("audit sink panicked", "sink", s.Name(), "entry_id", entry.ID, "panic", r)
				}
			}()
			if err := s.Emit(ctx, entry); err != nil {
				w.logger.Error("audit sink delivery failed", "sink", s.Name(), "entry_id", entry.ID, "error", err)
			}
		}(s)
	}
	wg.Wait()
}

// Sinks exposes the writer's sinks, primarily for tests.
func (w *Writer) Sinks() []Sink { return w.sinks }
