// Package bridge ties the collector registry, the approval workflow, the
// instrumentation buffers and the backend client into one long-lived
// instance that runs collections and ships snapshots.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fr4iser90/FoundryCord-sub001/internal/collector"
	"github.com/fr4iser90/FoundryCord-sub001/internal/consent"
	"github.com/fr4iser90/FoundryCord-sub001/internal/instrument"
	"github.com/fr4iser90/FoundryCord-sub001/internal/snapshot"
)

// DefaultCollectorTimeout bounds a single collector call.
const DefaultCollectorTimeout = 10 * time.Second

// ErrNoData is reported by Send when there is no snapshot to deliver.
var ErrNoData = errors.New("no_data: no snapshot to send")

// ErrUnknownCollector is returned for names that are not registered.
var ErrUnknownCollector = errors.New("unknown collector")

// Sender is the backend the bridge talks to. *transport.Client satisfies it.
type Sender interface {
	FetchToken(ctx context.Context) (string, error)
	Send(ctx context.Context, s *snapshot.Snapshot, token string) error
}

// Options configure New. Zero fields fall back to working defaults.
type Options struct {
	Registry *collector.Registry
	Consent  *consent.Manager
	Recorder *instrument.Recorder
	Sender   Sender
	Logger   *zap.Logger

	// CollectorTimeout bounds each collector call. Zero disables the bound.
	CollectorTimeout time.Duration
}

// Bridge is the single owner of collection state for a session.
type Bridge struct {
	registry *collector.Registry
	consent  *consent.Manager
	recorder *instrument.Recorder
	sender   Sender
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time

	mu    sync.Mutex
	token string
	last  *snapshot.Snapshot
}

// New builds a Bridge from opts. A nil Registry, Consent or Recorder is
// replaced by an empty one; a nil Sender makes Send fail.
func New(opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{
		registry: opts.Registry,
		consent:  opts.Consent,
		recorder: opts.Recorder,
		sender:   opts.Sender,
		logger:   logger,
		timeout:  opts.CollectorTimeout,
		now:      time.Now,
	}
	if b.registry == nil {
		b.registry = collector.NewRegistry()
	}
	if b.consent == nil {
		b.consent = consent.NewManager(nil, nil, logger)
	}
	if b.recorder == nil {
		b.recorder = instrument.NewRecorder(instrument.DefaultMaxErrors, instrument.DefaultMaxConsole, logger)
	}
	return b
}

// SetClock replaces the time source. Used by tests.
func (b *Bridge) SetClock(now func() time.Time) { b.now = now }

// Init loads the persisted approval set and fetches the security token.
// A failed token fetch is logged and returned, but the bridge stays usable
// and sends without the token header.
func (b *Bridge) Init(ctx context.Context) error {
	b.consent.Load()
	if b.sender == nil {
		return nil
	}
	token, err := b.sender.FetchToken(ctx)
	if err != nil {
		b.logger.Warn("token_fetch_failed", zap.Error(err))
		return err
	}
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
	b.logger.Debug("token_fetched")
	return nil
}

// HasToken reports whether Init obtained a security token.
func (b *Bridge) HasToken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token != ""
}

func (b *Bridge) Registry() *collector.Registry { return b.registry }
func (b *Bridge) Consent() *consent.Manager { return b.consent }
func (b *Bridge) Recorder() *instrument.Recorder { return b.recorder }

// Register adds a collector to the bridge's registry.
func (b *Bridge) Register(name string, fn collector.Func, opts ...collector.Option) bool {
	ok := b.registry.Register(name, fn, opts...)
	if !ok {
		b.logger.Warn("collector_register_rejected", zap.String("collector", name))
	}
	return ok
}

// RequestApproval asks the user to approve name. Collectors that do not
// need consent are approved without asking. Unknown names are refused with
// ErrUnknownCollector and nobody is asked.
func (b *Bridge) RequestApproval(ctx context.Context, name string) (bool, error) {
	c, ok := b.registry.Lookup(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownCollector, name)
	}
	if !c.Options.RequiresApproval {
		return true, nil
	}
	return b.consent.Request(ctx, consent.Prompt{Name: name, Description: c.Options.Description})
}

// LastSnapshot returns the snapshot from the most recent CollectState call.
func (b *Bridge) LastSnapshot() (*snapshot.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.last != nil
}
