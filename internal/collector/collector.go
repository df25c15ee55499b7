// Package collector holds the registry of named state collectors.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

// Func captures one category of state. in is the opaque context supplied to
// the collection run. Long-running collectors should honor ctx.
type Func func(ctx context.Context, in value.Value) (value.Value, error)

// Options control how a collector is run.
type Options struct {
	RequiresApproval bool
	Description      string
	Sanitize         bool
}

// Collector is a registered collector.
type Collector struct {
	Name         string
	Func         Func
	Options      Options
	RegisteredAt time.Time
}

type registration struct {
	opts           Options
	descriptionSet bool
	force          bool
}

// Option adjusts a registration.
type Option func(*registration)

// WithoutApproval lets the collector run without user consent.
func WithoutApproval() Option {
	return func(r *registration) { r.opts.RequiresApproval = false }
}

// RequireApproval sets the approval requirement explicitly.
func RequireApproval(required bool) Option {
	return func(r *registration) { r.opts.RequiresApproval = required }
}

// WithDescription sets the text shown when asking for consent.
func WithDescription(desc string) Option {
	return func(r *registration) {
		r.opts.Description = desc
		r.descriptionSet = true
	}
}

// WithoutSanitize records results exactly as captured.
func WithoutSanitize() Option {
	return func(r *registration) { r.opts.Sanitize = false }
}

// Force overwrites an existing collector with the same name.
func Force() Option {
	return func(r *registration) { r.force = true }
}

// DefaultDescription is the description used when none is given.
func DefaultDescription(name string) string {
	return "Collects " + name + " state"
}

// Registry maps collector names to collectors, remembering insertion order.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Collector
	order  []string
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Collector), now: time.Now}
}

// Register adds a collector. It returns false without changing anything if
// name is empty, fn is nil, or name is taken and Force was not given. An
// overwritten collector keeps its position in the order.
func (r *Registry) Register(name string, fn Func, opts ...Option) bool {
	if name == "" || fn == nil {
		return false
	}
	reg := registration{opts: Options{RequiresApproval: true, Sanitize: true}}
	for _, o := range opts {
		o(&reg)
	}
	if !reg.descriptionSet || reg.opts.Description == "" {
		reg.opts.Description = DefaultDescription(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		if !reg.force {
			return false
		}
	} else {
		r.order = append(r.order, name)
	}
	r.byName[name] = &Collector{
		Name:         name,
		Func:         fn,
		Options:      reg.opts,
		RegisteredAt: r.now(),
	}
	return true
}

// Lookup returns a copy of the named collector.
func (r *Registry) Lookup(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	if !ok {
		return Collector{}, false
	}
	return *c, true
}

// Names returns registered names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// List returns all collectors in insertion order.
func (r *Registry) List() []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Collector, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, *r.byName[n])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
