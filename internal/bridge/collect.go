package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/fr4iser90/FoundryCord-sub001/internal/collector"
	"github.com/fr4iser90/FoundryCord-sub001/internal/consent"
	"github.com/fr4iser90/FoundryCord-sub001/internal/sanitize"
	"github.com/fr4iser90/FoundryCord-sub001/internal/snapshot"
	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

// Result error codes.
const (
	ErrCodeUnknown     = "unknown_collector"
	ErrCodeNotApproved = "not_approved"
	ErrCodeTimeout     = "timeout"
)

// CollectState runs the named collectors, or every registered collector when
// names is empty, and stores the resulting snapshot as the last one.
//
// All approval prompts are settled before any collector runs. Collectors then
// run one at a time in the order given. A failing collector only affects its
// own entry in the results.
func (b *Bridge) CollectState(ctx context.Context, names []string, in value.Value) *snapshot.Snapshot {
	if len(names) == 0 {
		names = b.registry.Names()
	}

	for _, name := range names {
		c, ok := b.registry.Lookup(name)
		if !ok {
			b.logger.Warn("unknown_collector", zap.String("collector", name))
			continue
		}
		if !c.Options.RequiresApproval || b.consent.IsApproved(name) {
			continue
		}
		if _, err := b.consent.Request(ctx, consent.Prompt{Name: name, Description: c.Options.Description}); err != nil {
			b.logger.Warn("approval_request_failed", zap.String("collector", name), zap.Error(err))
		}
	}

	snap := snapshot.New(b.now())
	for _, name := range names {
		snap.Set(name, b.collectOne(ctx, name, in))
	}

	b.mu.Lock()
	b.last = snap
	b.mu.Unlock()
	b.logger.Info("state_collected", zap.Int("collectors", len(names)), zap.Int64("timestamp", snap.Timestamp))
	return snap
}

func (b *Bridge) collectOne(ctx context.Context, name string, in value.Value) value.Value {
	c, ok := b.registry.Lookup(name)
	if !ok {
		return errorResult(ErrCodeUnknown)
	}
	if c.Options.RequiresApproval && !b.consent.IsApproved(name) {
		return errorResult(ErrCodeNotApproved).With("requiresApproval", value.Bool(true))
	}

	v, err := b.run(ctx, c, in)
	if err != nil {
		var fail *collectorError
		if !errors.As(err, &fail) {
			fail = &collectorError{msg: err.Error()}
		}
		b.logger.Warn("collector_failed", zap.String("collector", name), zap.String("error", fail.msg))
		if fail.msg == ErrCodeTimeout {
			return errorResult(ErrCodeTimeout)
		}
		return errorResult(fail.msg).With("stack", value.String(fail.stack))
	}
	if c.Options.Sanitize {
		v = sanitize.Sanitize(v)
	}
	return v
}

type collectorError struct {
	msg   string
	stack string
}

func (e *collectorError) Error() string { return e.msg }

type stackTracer interface {
	Stack() string
}

type outcome struct {
	v   value.Value
	err error
}

// run calls c.Func in its own goroutine so a hung collector can be abandoned
// once the timeout expires. A panic is converted into an error.
func (b *Bridge) run(ctx context.Context, c collector.Collector, in value.Value) (value.Value, error) {
	callCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &collectorError{msg: fmt.Sprint(r), stack: string(debug.Stack())}}
			}
		}()
		v, err := c.Func(callCtx, in)
		done <- outcome{v: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return value.Null(), &collectorError{msg: ErrCodeTimeout}
			}
			var fail *collectorError
			if errors.As(out.err, &fail) {
				return value.Null(), fail
			}
			stack := ""
			if st, ok := out.err.(stackTracer); ok {
				stack = st.Stack()
			}
			return value.Null(), &collectorError{msg: out.err.Error(), stack: stack}
		}
		return out.v, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return value.Null(), &collectorError{msg: ctx.Err().Error()}
		}
		return value.Null(), &collectorError{msg: ErrCodeTimeout}
	}
}

func errorResult(msg string) value.Value {
	return value.Map(value.F("error", value.String(msg)))
}
