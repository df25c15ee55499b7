// Package instrument captures uncaught errors, unhandled rejections and
// console output into bounded buffers so they can be reported later by the
// jsErrors and consoleLogs collectors.
package instrument

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fr4iser90/FoundryCord-sub001/internal/ringbuf"
	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

const (
	DefaultMaxErrors  = 20
	DefaultMaxConsole = 50
)

// Error record types.
const (
	TypeError     = "onerror"
	TypeRejection = "onunhandledrejection"
)

// ErrorEvent describes an uncaught error as reported by the host.
type ErrorEvent struct {
	Message string
	Source  string
	Lineno  int
	Colno   int
	Stack   string
}

// ErrorRecord is one captured error.
type ErrorRecord struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Source    string `json:"source,omitempty"`
	Lineno    int    `json:"lineno,omitempty"`
	Colno     int    `json:"colno,omitempty"`
	Stack     string `json:"stack,omitempty"`
	Timestamp int64  `json:"timestamp"` // ms since epoch
}

// Value renders the record for inclusion in a snapshot.
func (r ErrorRecord) Value() value.Value {
	fields := []value.Field{
		value.F("type", value.String(r.Type)),
		value.F("message", value.String(r.Message)),
	}
	if r.Source != "" {
		fields = append(fields, value.F("source", value.String(r.Source)))
	}
	if r.Lineno != 0 {
		fields = append(fields, value.F("lineno", value.Int(r.Lineno)))
	}
	if r.Colno != 0 {
		fields = append(fields, value.F("colno", value.Int(r.Colno)))
	}
	if r.Stack != "" {
		fields = append(fields, value.F("stack", value.String(r.Stack)))
	}
	fields = append(fields, value.F("timestamp", value.Number(float64(r.Timestamp))))
	return value.Map(fields...)
}

// Recorder owns the error and console buffers.
type Recorder struct {
	errors  *ringbuf.Ring[ErrorRecord]
	console *ringbuf.Ring[ConsoleRecord]
	logger  *zap.Logger
	now     func() time.Time
}

// NewRecorder returns a Recorder with the given buffer bounds. Non-positive
// bounds fall back to DefaultMaxErrors and DefaultMaxConsole.
func NewRecorder(maxErrors, maxConsole int, logger *zap.Logger) *Recorder {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	if maxConsole <= 0 {
		maxConsole = DefaultMaxConsole
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		errors:  ringbuf.New[ErrorRecord](maxErrors),
		console: ringbuf.New[ConsoleRecord](maxConsole),
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (r *Recorder) SetClock(now func() time.Time) { r.now = now }

// CaptureError records an uncaught error.
func (r *Recorder) CaptureError(ev ErrorEvent) {
	r.errors.Push(ErrorRecord{
		Type:      TypeError,
		Message:   ev.Message,
		Source:    ev.Source,
		Lineno:    ev.Lineno,
		Colno:     ev.Colno,
		Stack:     ev.Stack,
		Timestamp: r.now().UnixMilli(),
	})
}

// CaptureRejection records an unhandled asynchronous failure. The reason is
// normalized: errors and error-like maps contribute message and stack,
// anything else is serialized as JSON or, failing that, with fmt.
func (r *Recorder) CaptureRejection(reason any) {
	message, stack := describeReason(reason)
	r.errors.Push(ErrorRecord{
		Type:      TypeRejection,
		Message:   message,
		Stack:     stack,
		Timestamp: r.now().UnixMilli(),
	})
}

// Guard runs fn and records a panic as an uncaught error before letting it
// continue to unwind.
func (r *Recorder) Guard(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			message, _ := describeReason(p)
			file, line := panicSite()
			r.CaptureError(ErrorEvent{
				Message: message,
				Source:  file,
				Lineno:  line,
				Stack:   string(debug.Stack()),
			})
			panic(p)
		}
	}()
	fn()
}

// Errors returns the captured errors, newest first.
func (r *Recorder) Errors() []ErrorRecord { return r.errors.Items() }

// ConsoleEntries returns the captured console calls, newest first.
func (r *Recorder) ConsoleEntries() []ConsoleRecord { return r.console.Items() }

type stackTracer interface {
	Stack() string
}

func describeReason(reason any) (message, stack string) {
	switch t := reason.(type) {
	case nil:
		return "undefined", ""
	case error:
		if st, ok := t.(stackTracer); ok {
			stack = st.Stack()
		}
		return t.Error(), stack
	case string:
		return t, ""
	case map[string]any:
		if msg, ok := t["message"].(string); ok {
			st, _ := t["stack"].(string)
			return msg, st
		}
	case value.Value:
		if msg, ok := t.Get("message"); ok && msg.Kind() == value.KindString {
			st, _ := t.Get("stack")
			return msg.Str(), st.Str()
		}
		if t.Kind() == value.KindString {
			return t.Str(), ""
		}
	}
	if b, err := json.Marshal(reason); err == nil {
		return string(b), ""
	}
	return fmt.Sprint(reason), ""
}

// panicSite finds the first frame outside the runtime and this package.
func panicSite() (string, int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") && !strings.Contains(frame.Function, "/internal/instrument.") {
			return frame.File, frame.Line
		}
		if !more {
			return "", 0
		}
	}
}
