// Package audit is the tamper-evident audit trail facade. A Logger
// normalizes caller events into immutable entries, maintains the hash chain,
// persists entries to the configured store and fans them out to sinks, and
// exposes query, verification and export over what was persisted.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spounge-ai/audittrail/pkg/audit/chain"
	"github.com/spounge-ai/audittrail/pkg/audit/config"
	"github.com/spounge-ai/audittrail/pkg/audit/domain"
	"github.com/spounge-ai/audittrail/pkg/audit/export"
	"github.com/spounge-ai/audittrail/pkg/audit/persistence"
	"github.com/spounge-ai/audittrail/pkg/audit/sink"
)

// Logger is the audit trail orchestrator. One Logger owns one chain
// instance and one store; Log calls are serialized internally so chain
// sequences stay gapless under concurrent use.
type Logger struct {
	mu     sync.Mutex
	cfg    config.Config
	chain  *chain.Chain
	store  domain.Store
	sinks  *sink.Writer
	signer *signer
	log    *slog.Logger

	purgeStop chan struct{}
	purgeWG   sync.WaitGroup
	closeOnce sync.Once
}

// Option customizes a Logger beyond its Config.
type Option func(*Logger)

// WithSlog sets the operational logger used for sink and purge failure
// reports. Defaults to slog.Default().
func WithSlog(l *slog.Logger) Option {
	return func(lg *Logger) {
		if l != nil {
			lg.log = l
		}
	}
}

// WithStoreInstance injects a ready-made store, overriding the store
// selection in the config. Useful for tests and custom backends.
func WithStoreInstance(s domain.Store) Option {
	return func(lg *Logger) { lg.store = s }
}

// New builds a Logger from cfg merged over the documented defaults. The
// file store requires a file path and the postgres store a DSN; either
// missing is a configuration error.
func New(cfg config.Config, opts ...Option) (*Logger, error) {
	cfg = cfg.WithDefaults()

	lg := &Logger{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(lg)
	}

	if cfg.HashChaining {
		lg.chain = chain.New(cfg.HashAlgorithm)
	}
	if cfg.SignLogs {
		lg.signer = newSigner(cfg.SigningKey)
	}

	if lg.store == nil {
		store, err := buildStore(cfg, lg.log)
		if err != nil {
			return nil, err
		}
		lg.store = store
	}

	sinks, err := sink.NewWriter(cfg.Sinks, cfg.StructuredEnabled(), lg.log)
	if err != nil {
		lg.store.Close()
		return nil, err
	}
	lg.sinks = sinks

	lg.startPurgeLoop()
	return lg, nil
}

// WithCompliance builds a Logger from a named compliance preset, with opts
// applied over the preset's overrides.
func WithCompliance(preset config.Preset, opts []config.Option, loggerOpts ...Option) (*Logger, error) {
	cfg, err := config.ForPreset(preset, opts...)
	if err != nil {
		return nil, err
	}
	return New(cfg, loggerOpts...)
}

func buildStore(cfg config.Config, log *slog.Logger) (domain.Store, error) {
	switch cfg.Store.Type {
	case config.StoreFile:
		return persistence.NewFileStore(cfg.Store.FilePath, cfg.Store.BufferSize, cfg.Store.FlushInterval, log)
	case config.StorePostgres:
		return persistence.NewPostgresStore(context.Background(), cfg.Store.PostgresDSN, log)
	default:
		return persistence.NewMemoryStore(cfg.Store.MaxSize), nil
	}
}

// Log normalizes the event, stamps identity, timestamp and the service
// snapshot, attaches chain linkage when enabled, persists the entry and
// fans it out to every sink. Sink failures never surface here; a store
// failure does, and rolls the chain back so no sequence number is burned.
func (l *Logger) Log(ctx context.Context, event domain.AuditEvent) (*domain.AuditEntry, error) {
	event.Normalize()

	entry := &domain.AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Event:     event,
	}

	l.mu.Lock()
	entry.Service = domain.ServiceInfo{
		Name:        l.cfg.ServiceName,
		Version:     l.cfg.ServiceVersion,
		Environment: l.cfg.Environment,
	}
	if l.chain != nil {
		prior := l.chain.State()
		link := l.chain.Add(entry)
		entry.Chain = &link
		if l.signer != nil {
			entry.Signature = l.signer.sign(entry)
		}
		if err := l.store.Write(ctx, entry); err != nil {
			l.chain.Restore(prior)
			l.mu.Unlock()
			return nil, fmt.Errorf("failed to write audit entry: %w", err)
		}
	} else {
		if l.signer != nil {
			entry.Signature = l.signer.sign(entry)
		}
		if err := l.store.Write(ctx, entry); err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("failed to write audit entry: %w", err)
		}
	}
	sinks := l.sinks
	l.mu.Unlock()

	sinks.Publish(ctx, entry)
	return entry, nil
}

// Success logs the event with a success outcome.
func (l *Logger) Success(ctx context.Context, event domain.AuditEvent) (*domain.AuditEntry, error) {
	event.Outcome = domain.OutcomeSuccess
	return l.Log(ctx, event)
}

// Failure logs the event with a failure outcome. When err is non-nil its
// message fills the error block, and a stack is captured only if stack
// traces are enabled for this logger. An error block already present on the
// event is kept as-is.
func (l *Logger) Failure(ctx context.Context, event domain.AuditEvent, err error) (*domain.AuditEntry, error) {
	event.Outcome = domain.OutcomeFailure
	if event.Error == nil && err != nil {
		l.mu.Lock()
		withStack := l.cfg.StackTracesEnabled()
		l.mu.Unlock()
		detail := &domain.ErrorDetail{Message: err.Error()}
		if withStack {
			buf := make([]byte, 8192)
			detail.Stack = string(buf[:runtime.Stack(buf, false)])
		}
		event.Error = detail
	}
	return l.Log(ctx, event)
}

// Query delegates to the store.
func (l *Logger) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	l.mu.Lock()
	store := l.store
	l.mu.Unlock()
	return store.Query(ctx, q)
}

// Export serializes entries to path in the given format. Entries are
// whatever the caller obtained via Query; the store is not consulted.
func (l *Logger) Export(path string, entries []*domain.AuditEntry, format export.Format) error {
	return export.ToFile(path, entries, format)
}

// VerifyChain checks chain integrity over the given entries. When chaining
// is disabled for this logger there is nothing to check and the result is
// vacuously valid.
func (l *Logger) VerifyChain(entries []*domain.AuditEntry) chain.Result {
	l.mu.Lock()
	c := l.chain
	alg := l.cfg.HashAlgorithm
	l.mu.Unlock()
	if c == nil {
		return chain.Result{Valid: true, BrokenAt: -1}
	}
	return chain.Verify(alg, entries)
}

// ChainState exposes the running chain state for external persistence, so a
// later process can resume the chain via RestoreChain. Returns false when
// chaining is disabled.
func (l *Logger) ChainState() (chain.State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chain == nil {
		return chain.State{}, false
	}
	return l.chain.State(), true
}

// RestoreChain reseeds the chain from externally persisted state. Without
// this, a new Logger over an existing store starts a fresh chain at genesis,
// internally consistent but disconnected from prior entries.
func (l *Logger) RestoreChain(s chain.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chain != nil {
		l.chain.Restore(s)
	}
}

// SetConfig re-merges configuration live. Toggling the chaining flag
// replaces the chain instance, resetting it to genesis: entries logged
// before and after the switch are not cross-linked. The sink writer is
// rebuilt from the new sink list. The store is never touched here; use
// SetStore.
func (l *Logger) SetConfig(cfg config.Config) error {
	cfg = cfg.WithDefaults()

	sinks, err := sink.NewWriter(cfg.Sinks, cfg.StructuredEnabled(), l.log)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cfg.HashChaining != l.cfg.HashChaining || cfg.HashAlgorithm != l.cfg.HashAlgorithm {
		if cfg.HashChaining {
			l.chain = chain.New(cfg.HashAlgorithm)
		} else {
			l.chain = nil
		}
	}
	if cfg.SignLogs {
		l.signer = newSigner(cfg.SigningKey)
	} else {
		l.signer = nil
	}
	l.sinks = sinks
	l.cfg = cfg
	return nil
}

// Config returns the resolved configuration.
func (l *Logger) Config() config.Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// SetStore swaps the persistence backend without touching any other logger
// state. The previous store is not closed; the caller owns both.
func (l *Logger) SetStore(s domain.Store) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store = s
}

// PurgeExpired removes entries older than the retention window, if the
// store supports purging. Returns the number of removed entries.
func (l *Logger) PurgeExpired(ctx context.Context) (int, error) {
	l.mu.Lock()
	store := l.store
	days := l.cfg.RetentionDays
	l.mu.Unlock()

	p, ok := store.(domain.Purger)
	if !ok || days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return p.Purge(ctx, cutoff)
}

// startPurgeLoop runs retention purges in the background when auto-delete
// is enabled (the GDPR preset turns it on).
func (l *Logger) startPurgeLoop() {
	if !l.cfg.AutoDelete {
		return
	}
	l.purgeStop = make(chan struct{})
	l.purgeWG.Add(1)
	go func() {
		defer l.purgeWG.Done()
		ticker := time.NewTicker(l.cfg.PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := l.PurgeExpired(context.Background()); err != nil {
					l.log.Error("audit retention purge failed", "error", err)
				} else if n > 0 {
					l.log.Info("audit retention purge removed entries", "count", n)
				}
			case <-l.purgeStop:
				return
			}
		}
	}()
}

// Close stops the purge loop and closes the store (final flush for the file
// store). Sinks are fire-and-forget per write and are not closed.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.purgeStop != nil {
			close(l.purgeStop)
			l.purgeWG.Wait()
		}
		err = l.store.Close()
	})
	return err
}
