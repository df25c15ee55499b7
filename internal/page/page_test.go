package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/require"

	"github.com/fr4iser90/FoundryCord-sub001/internal/instrument"
)

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("https://dash.example/guilds/42/settings?tab=bot#logs")
	require.NoError(t, err)
	require.Equal(t, Location{
		URL:   "https://dash.example/guilds/42/settings?tab=bot#logs",
		Path:  "/guilds/42/settings",
		Query: "?tab=bot",
		Hash:  "#logs",
	}, loc)

	loc, err = ParseLocation("https://dash.example")
	require.NoError(t, err)
	require.Equal(t, "/", loc.Path)
	require.Empty(t, loc.Query)

	_, err = ParseLocation("://bad")
	require.Error(t, err)
}

func TestStaticPageReportsOnlyWhatItKnows(t *testing.T) {
	p, err := StaticFromURL("http://x/y")
	require.NoError(t, err)
	ctx := context.Background()

	loc, err := p.Location(ctx)
	require.NoError(t, err)
	require.Equal(t, "/y", loc.Path)
	require.True(t, Supports(p, StateLocation))

	for _, st := range []State{StateViewport, StateFeatures, StateDOMSummary, StateStorageKeys} {
		require.False(t, Supports(p, st), st)
	}
	_, err = p.Viewport(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = p.Features(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = p.DOMSummary(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = p.StorageKeys(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestStaticPageReturnsSetFields(t *testing.T) {
	p := &Static{View: &Viewport{Width: 800, Height: 600}, DOM: &DOMSummary{}}
	require.True(t, Supports(p, StateViewport))
	require.True(t, Supports(p, StateDOMSummary))
	require.False(t, Supports(p, StateStorageKeys))

	vp, err := p.Viewport(context.Background())
	require.NoError(t, err)
	require.Equal(t, 800, vp.Width)
}

func locateBrowser(t *testing.T) string {
	t.Helper()
	for _, env := range []string{"CHROMEDP_BROWSER", "CHROME_PATH"} {
		if p := os.Getenv(env); p != "" {
			return p
		}
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("headless browser not available")
	return ""
}

const testDocument = `<!doctype html>
<html><head><title>Guild settings</title></head>
<body class="dashboard dark"><div><p>one</p><p>two</p></div>
<script>localStorage.setItem('theme', 'dark'); sessionStorage.setItem('tab', 'bot');</script>
</body></html>`

func TestBrowserReadsLivePage(t *testing.T) {
	execPath := locateBrowser(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testDocument))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := NewBrowser(ctx, srv.URL+"/guilds?id=1#top", nil, chromedp.ExecPath(execPath))
	require.NoError(t, err)
	defer b.Close()

	loc, err := b.Location(ctx)
	require.NoError(t, err)
	require.Equal(t, "/guilds", loc.Path)
	require.Equal(t, "?id=1", loc.Query)
	require.Equal(t, "#top", loc.Hash)

	dom, err := b.DOMSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, "Guild settings", dom.Title)
	require.Equal(t, 2, dom.TagCounts["p"])
	require.ElementsMatch(t, []string{"dashboard", "dark"}, dom.BodyClasses)

	keys, err := b.StorageKeys(ctx)
	require.NoError(t, err)
	require.Contains(t, keys.Local, "theme")
	require.Contains(t, keys.Session, "tab")

	feat, err := b.Features(ctx)
	require.NoError(t, err)
	require.True(t, feat.LocalStorage)

	vp, err := b.Viewport(ctx)
	require.NoError(t, err)
	require.Positive(t, vp.Width)
}

const failingDocument = `<!doctype html>
<html><body>
<script>
console.warn('low disk', 3);
Promise.reject(new Error('nope'));
setTimeout(function tick() { throw new Error('boom'); }, 0);
</script>
</body></html>`

func TestBrowserRecordsPageErrors(t *testing.T) {
	execPath := locateBrowser(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(failingDocument))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec := instrument.NewRecorder(0, 0, nil)
	b, err := NewBrowser(ctx, srv.URL, rec, chromedp.ExecPath(execPath))
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool { return len(rec.Errors()) >= 2 }, 10*time.Second, 50*time.Millisecond)

	byType := map[string]instrument.ErrorRecord{}
	for _, e := range rec.Errors() {
		byType[e.Type] = e
	}
	thrown := byType[instrument.TypeError]
	require.Contains(t, thrown.Message, "boom")
	require.Contains(t, thrown.Stack, "tick")
	require.Positive(t, thrown.Lineno)
	require.Contains(t, byType[instrument.TypeRejection].Message, "nope")

	require.Eventually(t, func() bool { return len(rec.ConsoleEntries()) > 0 }, 10*time.Second, 50*time.Millisecond)
	entry := rec.ConsoleEntries()[0]
	require.Equal(t, "warn", entry.Level)
	require.Equal(t, "low disk", entry.Args[0].Str())
}

func TestRecordEventMapsRuntimeEvents(t *testing.T) {
	rec := instrument.NewRecorder(0, 0, nil)

	recordEvent(rec, &runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{
		Text:         "Uncaught",
		URL:          "http://x/app.js",
		LineNumber:   9,
		ColumnNumber: 4,
		Exception:    &runtime.RemoteObject{Type: "object", Description: "Error: boom\n    at f (app.js:10:5)"},
		StackTrace: &runtime.StackTrace{CallFrames: []*runtime.CallFrame{
			{FunctionName: "f", URL: "http://x/app.js", LineNumber: 9, ColumnNumber: 4},
		}},
	}})
	recordEvent(rec, &runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{
		Text:      "Uncaught (in promise)",
		Exception: &runtime.RemoteObject{Type: "number", Value: []byte("42")},
	}})
	recordEvent(rec, &runtime.EventConsoleAPICalled{Type: runtime.APITypeWarning, Args: []*runtime.RemoteObject{
		{Type: "string", Value: []byte(`"slow"`)},
	}})
	recordEvent(rec, &runtime.EventConsoleAPICalled{Type: runtime.APITypeTable})

	errs := rec.Errors()
	require.Len(t, errs, 2)
	require.Equal(t, instrument.TypeRejection, errs[0].Type)
	require.Equal(t, "42", errs[0].Message)

	require.Equal(t, instrument.TypeError, errs[1].Type)
	require.Equal(t, "Error: boom", errs[1].Message)
	require.Equal(t, "http://x/app.js", errs[1].Source)
	require.Equal(t, 10, errs[1].Lineno)
	require.Equal(t, 5, errs[1].Colno)
	require.Equal(t, "    at f (http://x/app.js:10:5)", errs[1].Stack)

	console := rec.ConsoleEntries()
	require.Len(t, console, 1)
	require.Equal(t, "warn", console[0].Level)
	require.Equal(t, "slow", console[0].Args[0].Str())
}
