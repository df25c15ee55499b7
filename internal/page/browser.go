package page

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/fr4iser90/FoundryCord-sub001/internal/instrument"
	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

// Browser reads host state from a live page in headless Chrome.
type Browser struct {
	ctx    context.Context
	cancel context.CancelFunc
}

const (
	locationScript = `({url: location.href, path: location.pathname, query: location.search, hash: location.hash})`

	viewportScript = `({
		width: window.innerWidth,
		height: window.innerHeight,
		pixelRatio: window.devicePixelRatio || 1,
		orientation: (screen.orientation && screen.orientation.type) || (window.innerWidth >= window.innerHeight ? 'landscape-primary' : 'portrait-primary')
	})`

	featuresScript = `({
		localStorage: typeof window.localStorage !== 'undefined',
		sessionStorage: typeof window.sessionStorage !== 'undefined',
		webSockets: typeof window.WebSocket !== 'undefined',
		webWorkers: typeof window.Worker !== 'undefined',
		geolocation: 'geolocation' in navigator,
		serviceWorker: 'serviceWorker' in navigator
	})`

	domSummaryScript = `(() => {
		const tagCounts = {};
		const all = document.getElementsByTagName('*');
		for (const el of all) {
			const tag = el.tagName.toLowerCase();
			tagCounts[tag] = (tagCounts[tag] || 0) + 1;
		}
		return {
			tagCounts,
			totalElements: all.length,
			title: document.title,
			bodyClasses: document.body ? Array.from(document.body.classList) : []
		};
	})()`

	storageKeysScript = `(() => {
		const keys = (s) => { try { return s ? Object.keys(s) : []; } catch (e) { return []; } };
		return {localStorage: keys(window.localStorage), sessionStorage: keys(window.sessionStorage)};
	})()`
)

// NewBrowser starts headless Chrome and navigates to url. Close releases
// the browser. When rec is non-nil, exceptions, unhandled rejections and
// console calls raised by the page are recorded into it from the start of
// navigation.
func NewBrowser(parent context.Context, url string, rec *instrument.Recorder, opts ...chromedp.ExecAllocatorOption) (*Browser, error) {
	allocOpts := append(append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...), opts...)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		ctxCancel()
		allocCancel()
	}

	if rec != nil {
		chromedp.ListenTarget(ctx, func(ev any) { recordEvent(rec, ev) })
	}

	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		cancel()
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	return &Browser{ctx: ctx, cancel: cancel}, nil
}

const rejectionPrefix = "Uncaught (in promise)"

// recordEvent runs on the target's event loop and must not block.
func recordEvent(rec *instrument.Recorder, ev any) {
	switch ev := ev.(type) {
	case *runtime.EventExceptionThrown:
		d := ev.ExceptionDetails
		if d == nil {
			return
		}
		msg := exceptionMessage(d)
		stack := formatStack(d.StackTrace)
		if strings.HasPrefix(d.Text, rejectionPrefix) {
			rec.CaptureRejection(value.Map(
				value.F("message", value.String(msg)),
				value.F("stack", value.String(stack)),
			))
			return
		}
		rec.CaptureError(instrument.ErrorEvent{
			Message: msg,
			Source:  d.URL,
			Lineno:  int(d.LineNumber) + 1,
			Colno:   int(d.ColumnNumber) + 1,
			Stack:   stack,
		})
	case *runtime.EventConsoleAPICalled:
		level := string(ev.Type)
		switch ev.Type {
		case runtime.APITypeLog, runtime.APITypeInfo, runtime.APITypeDebug, runtime.APITypeError:
		case runtime.APITypeWarning:
			level = "warn"
		default:
			return
		}
		args := make([]value.Value, 0, len(ev.Args))
		for _, a := range ev.Args {
			args = append(args, remoteValue(a))
		}
		rec.CaptureConsole(level, args...)
	}
}

// exceptionMessage prefers the thrown object's description, which for Error
// instances is "Name: message" followed by the stack.
func exceptionMessage(d *runtime.ExceptionDetails) string {
	if o := d.Exception; o != nil {
		if o.Description != "" {
			first, _, _ := strings.Cut(o.Description, "\n")
			return first
		}
		if v := remoteValue(o); v.Kind() == value.KindString {
			return v.Str()
		} else if !v.IsNull() {
			b, _ := v.MarshalJSON()
			return string(b)
		}
	}
	return d.Text
}

func formatStack(st *runtime.StackTrace) string {
	if st == nil {
		return ""
	}
	var b strings.Builder
	for _, f := range st.CallFrames {
		name := f.FunctionName
		if name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(&b, "    at %s (%s:%d:%d)\n", name, f.URL, f.LineNumber+1, f.ColumnNumber+1)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func remoteValue(o *runtime.RemoteObject) value.Value {
	if o == nil {
		return value.Null()
	}
	if len(o.Value) > 0 {
		if v, err := value.Parse([]byte(o.Value)); err == nil {
			return v
		}
	}
	if o.UnserializableValue != "" {
		return value.String(string(o.UnserializableValue))
	}
	if o.Description != "" {
		return value.String(o.Description)
	}
	return value.String(string(o.Type))
}

// Close shuts the browser down.
func (b *Browser) Close() { b.cancel() }

// eval runs script in the page and decodes its result into out. The call
// is abandoned when ctx ends.
func (b *Browser) eval(ctx context.Context, script string, out any) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, chromedp.Evaluate(script, out))
}

func (b *Browser) Location(ctx context.Context) (Location, error) {
	var loc Location
	err := b.eval(ctx, locationScript, &loc)
	return loc, err
}

func (b *Browser) Viewport(ctx context.Context) (Viewport, error) {
	var v Viewport
	err := b.eval(ctx, viewportScript, &v)
	return v, err
}

func (b *Browser) Features(ctx context.Context) (Features, error) {
	var f Features
	err := b.eval(ctx, featuresScript, &f)
	return f, err
}

func (b *Browser) DOMSummary(ctx context.Context) (DOMSummary, error) {
	var d DOMSummary
	err := b.eval(ctx, domSummaryScript, &d)
	return d, err
}

func (b *Browser) StorageKeys(ctx context.Context) (StorageKeys, error) {
	var s StorageKeys
	err := b.eval(ctx, storageKeysScript, &s)
	return s, err
}
