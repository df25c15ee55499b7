package instrument

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

// ConsoleRecord is one intercepted logging call.
type ConsoleRecord struct {
	Level     string        `json:"level"`
	Args      []value.Value `json:"args"`
	Timestamp int64         `json:"timestamp"` // ms since epoch
}

// Value renders the record for inclusion in a snapshot.
func (c ConsoleRecord) Value() value.Value {
	return value.Map(
		value.F("level", value.String(c.Level)),
		value.F("args", value.List(c.Args...)),
		value.F("timestamp", value.Number(float64(c.Timestamp))),
	)
}

// Console is the logging surface application code calls through. Each call
// is appended to the recorder's console buffer and then forwarded to the
// wrapped logger unchanged.
type Console struct {
	rec   *Recorder
	sugar *zap.SugaredLogger
}

// Console returns a Console that forwards to logger, or to the recorder's
// own logger when logger is nil.
func (r *Recorder) Console(logger *zap.Logger) *Console {
	if logger == nil {
		logger = r.logger
	}
	return &Console{rec: r, sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (c *Console) Debug(args ...any) {
	c.record("debug", args)
	c.sugar.Debug(args...)
}

func (c *Console) Info(args ...any) {
	c.record("info", args)
	c.sugar.Info(args...)
}

func (c *Console) Warn(args ...any) {
	c.record("warn", args)
	c.sugar.Warn(args...)
}

func (c *Console) Error(args ...any) {
	c.record("error", args)
	c.sugar.Error(args...)
}

// Printf-style variants record the formatted message as a single argument.
func (c *Console) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.record("info", []any{msg})
	c.sugar.Info(msg)
}

func (c *Console) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.record("warn", []any{msg})
	c.sugar.Warn(msg)
}

func (c *Console) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.record("error", []any{msg})
	c.sugar.Error(msg)
}

func (c *Console) record(level string, args []any) {
	vals := make([]value.Value, len(args))
	for i, a := range args {
		vals[i] = value.From(a)
	}
	c.rec.CaptureConsole(level, vals...)
}

// CaptureConsole records a console call made outside this process, such as
// one reported by a browser page.
func (r *Recorder) CaptureConsole(level string, args ...value.Value) {
	r.console.Push(ConsoleRecord{
		Level:     strings.ToLower(level),
		Args:      args,
		Timestamp: r.now().UnixMilli(),
	})
}
