package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/fr4iser90/FoundryCord-sub001/internal/collector"
	"github.com/fr4iser90/FoundryCord-sub001/internal/consent"
	"github.com/fr4iser90/FoundryCord-sub001/internal/sanitize"
	"github.com/fr4iser90/FoundryCord-sub001/internal/snapshot"
	"github.com/fr4iser90/FoundryCord-sub001/internal/transport"
	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

// countingSurface answers every prompt with answer and counts prompts.
type countingSurface struct {
	mu      sync.Mutex
	answer  bool
	prompts []string
}

func (s *countingSurface) Confirm(_ context.Context, p consent.Prompt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, p.Name)
	return s.answer, nil
}

func (s *countingSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type fakeSender struct {
	token    string
	tokenErr error
	sendErr  error
	sends    int
	gotToken string
	got      *snapshot.Snapshot
}

func (f *fakeSender) FetchToken(context.Context) (string, error) { return f.token, f.tokenErr }

func (f *fakeSender) Send(_ context.Context, s *snapshot.Snapshot, token string) error {
	f.sends++
	f.gotToken = token
	f.got = s
	return f.sendErr
}

func newBridge(surface consent.Surface, sender Sender) *Bridge {
	b := New(Options{
		Consent:          consent.NewManager(&consent.MemoryStore{}, surface, nil),
		Sender:           sender,
		CollectorTimeout: time.Second,
	})
	b.SetClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) })
	return b
}

func constant(v value.Value) collector.Func {
	return func(context.Context, value.Value) (value.Value, error) { return v, nil }
}

func TestCollectNavigationWithoutDialog(t *testing.T) {
	surface := &countingSurface{answer: true}
	b := newBridge(surface, nil)
	require.True(t, b.Register("navigation", constant(value.Map(value.F("url", value.String("http://x/y")))), collector.WithoutApproval()))

	snap := b.CollectState(context.Background(), []string{"navigation"}, value.Null())

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.JSONEq(t, `{"timestamp":1700000000000,"results":{"navigation":{"url":"http://x/y"}}}`, string(data))
	require.Zero(t, surface.count())

	last, ok := b.LastSnapshot()
	require.True(t, ok)
	require.Same(t, snap, last)
}

func TestUnapprovedCollectorIsNotRun(t *testing.T) {
	surface := &countingSurface{answer: false}
	b := newBridge(surface, nil)
	called := false
	b.Register("storageKeys", func(context.Context, value.Value) (value.Value, error) {
		called = true
		return value.Null(), nil
	})

	snap := b.CollectState(context.Background(), nil, value.Null())

	require.False(t, called)
	got, _ := snap.Result("storageKeys")
	want := value.Map(value.F("error", value.String("not_approved")), value.F("requiresApproval", value.Bool(true)))
	require.True(t, want.Equal(got), "got %s", mustJSON(got))
	require.Equal(t, 1, surface.count())
}

func TestApprovedCollectorRunsWithoutReprompt(t *testing.T) {
	surface := &countingSurface{answer: true}
	b := newBridge(surface, nil)
	runs := 0
	b.Register("domSummary", func(context.Context, value.Value) (value.Value, error) {
		runs++
		return value.Map(value.F("totalElements", value.Int(4))), nil
	})

	for i := 0; i < 3; i++ {
		snap := b.CollectState(context.Background(), []string{"domSummary"}, value.Null())
		require.False(t, snap.Failed("domSummary"))
	}
	require.Equal(t, 3, runs)
	require.Equal(t, 1, surface.count())
}

func TestApprovalsSettleBeforeCollection(t *testing.T) {
	surface := &countingSurface{answer: true}
	b := newBridge(surface, nil)
	var promptsSeen []int
	for _, name := range []string{"a", "b", "c"} {
		b.Register(name, func(context.Context, value.Value) (value.Value, error) {
			promptsSeen = append(promptsSeen, surface.count())
			return value.Bool(true), nil
		})
	}

	snap := b.CollectState(context.Background(), nil, value.Null())

	require.Equal(t, []string{"a", "b", "c"}, snap.Names())
	require.Equal(t, []int{3, 3, 3}, promptsSeen)
}

func TestUnknownCollectorIsRecordedAndLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := New(Options{Logger: zap.New(core)})
	b.Register("viewport", constant(value.Int(1)), collector.WithoutApproval())

	snap := b.CollectState(context.Background(), []string{"nope", "viewport"}, value.Null())

	require.Equal(t, []string{"nope", "viewport"}, snap.Names())
	got, _ := snap.Result("nope")
	require.True(t, value.Map(value.F("error", value.String("unknown_collector"))).Equal(got))
	require.False(t, snap.Failed("viewport"))
	require.Equal(t, 1, logs.FilterMessage("unknown_collector").Len())
}

func TestFailingCollectorDoesNotAbortBatch(t *testing.T) {
	b := newBridge(nil, nil)
	b.Register("broken", func(context.Context, value.Value) (value.Value, error) {
		return value.Null(), errors.New("boom")
	}, collector.WithoutApproval())
	b.Register("panics", func(context.Context, value.Value) (value.Value, error) {
		panic("kaboom")
	}, collector.WithoutApproval())
	b.Register("fine", constant(value.String("ok")), collector.WithoutApproval())

	snap := b.CollectState(context.Background(), nil, value.Null())

	broken, _ := snap.Result("broken")
	msg, _ := broken.Get("error")
	require.Equal(t, "boom", msg.Str())
	_, hasStack := broken.Get("stack")
	require.True(t, hasStack)

	panicked, _ := snap.Result("panics")
	msg, _ = panicked.Get("error")
	require.Equal(t, "kaboom", msg.Str())
	stack, _ := panicked.Get("stack")
	require.Contains(t, stack.Str(), "goroutine")

	fine, _ := snap.Result("fine")
	require.Equal(t, "ok", fine.Str())
}

func TestHungCollectorTimesOut(t *testing.T) {
	b := New(Options{CollectorTimeout: 20 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)
	b.Register("hung", func(ctx context.Context, _ value.Value) (value.Value, error) {
		<-release
		return value.Null(), nil
	}, collector.WithoutApproval())
	b.Register("after", constant(value.Int(2)), collector.WithoutApproval())

	snap := b.CollectState(context.Background(), nil, value.Null())

	hung, _ := snap.Result("hung")
	require.True(t, value.Map(value.F("error", value.String("timeout"))).Equal(hung))
	after, _ := snap.Result("after")
	require.Equal(t, float64(2), after.Number())
}

func TestCollectorHonoringContextTimesOut(t *testing.T) {
	b := New(Options{CollectorTimeout: 20 * time.Millisecond})
	b.Register("slow", func(ctx context.Context, _ value.Value) (value.Value, error) {
		<-ctx.Done()
		return value.Null(), ctx.Err()
	}, collector.WithoutApproval())

	snap := b.CollectState(context.Background(), nil, value.Null())
	slow, _ := snap.Result("slow")
	msg, _ := slow.Get("error")
	require.Equal(t, "timeout", msg.Str())
}

func TestContextIsPassedThrough(t *testing.T) {
	b := newBridge(nil, nil)
	var got value.Value
	b.Register("echo", func(_ context.Context, in value.Value) (value.Value, error) {
		got = in
		return in, nil
	}, collector.WithoutApproval())

	in := value.Map(value.F("route", value.String("/home")))
	b.CollectState(context.Background(), nil, in)
	require.True(t, in.Equal(got))
}

func TestSanitizeOption(t *testing.T) {
	b := newBridge(nil, nil)
	raw := value.Map(value.F("apiKey", value.String("abc")), value.F("host", value.Host(value.HostWindow)))
	b.Register("clean", constant(raw), collector.WithoutApproval())
	b.Register("rawdata", constant(raw), collector.WithoutApproval(), collector.WithoutSanitize())

	snap := b.CollectState(context.Background(), nil, value.Null())

	clean, _ := snap.Result("clean")
	key, _ := clean.Get("apiKey")
	require.Equal(t, sanitize.Redacted, key.Str())
	host, _ := clean.Get("host")
	require.Equal(t, "[Window]", host.Str())

	rawResult, _ := snap.Result("rawdata")
	key, _ = rawResult.Get("apiKey")
	require.Equal(t, "abc", key.Str())
}

func TestSendWithoutSnapshotMakesNoRequest(t *testing.T) {
	sender := &fakeSender{}
	b := newBridge(nil, sender)

	res := b.Send(context.Background(), nil)

	require.ErrorIs(t, res.Err, ErrNoData)
	require.False(t, res.OK())
	require.Zero(t, sender.sends)
}

func TestSendUsesLastSnapshotAndToken(t *testing.T) {
	sender := &fakeSender{token: "tok-1"}
	b := newBridge(nil, sender)
	require.NoError(t, b.Init(context.Background()))
	require.True(t, b.HasToken())
	b.Register("navigation", constant(value.String("x")), collector.WithoutApproval())
	snap := b.CollectState(context.Background(), nil, value.Null())

	res := b.Send(context.Background(), nil)

	require.True(t, res.OK())
	require.Equal(t, 1, sender.sends)
	require.Equal(t, "tok-1", sender.gotToken)
	require.Same(t, snap, sender.got)
}

func TestSendSurfacesStatus(t *testing.T) {
	sender := &fakeSender{sendErr: &transport.StatusError{Op: "send snapshot", Status: http.StatusForbidden}}
	b := newBridge(nil, sender)

	res := b.Send(context.Background(), snapshot.New(time.Now()))

	require.False(t, res.OK())
	require.Equal(t, http.StatusForbidden, res.Status)
	require.Equal(t, 1, sender.sends)
}

func TestInitDegradesOnTokenFailure(t *testing.T) {
	sender := &fakeSender{tokenErr: errors.New("connection refused")}
	b := newBridge(nil, sender)

	require.Error(t, b.Init(context.Background()))
	require.False(t, b.HasToken())

	res := b.Send(context.Background(), snapshot.New(time.Now()))
	require.True(t, res.OK())
	require.Equal(t, "", sender.gotToken)
}

// Property: collectors registered without approval always appear in the
// snapshot and never trigger a prompt.
func TestNoApprovalCollectorsNeverPrompt(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		surface := &countingSurface{answer: true}
		b := newBridge(surface, nil)
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,8}`), 1, 6, rapid.ID[string]).Draw(t, "names")
		for _, n := range names {
			b.Register(n, constant(value.String(n)), collector.WithoutApproval())
		}

		snap := b.CollectState(context.Background(), nil, value.Null())

		if surface.count() != 0 {
			t.Fatalf("prompted %d times", surface.count())
		}
		for _, n := range names {
			got, ok := snap.Result(n)
			if !ok || got.Str() != n {
				t.Fatalf("result for %q = %v, %v", n, got, ok)
			}
		}
	})
}

func mustJSON(v value.Value) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestRequestApprovalSkipsPromptWhenNotRequired(t *testing.T) {
	surface := &countingSurface{answer: false}
	b := newBridge(surface, nil)
	require.True(t, b.Register("navigation", constant(value.Null()), collector.WithoutApproval()))

	ok, err := b.RequestApproval(context.Background(), "navigation")
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, surface.count())
	require.False(t, b.Consent().IsApproved("navigation"))
}

func TestRequestApprovalRefusesUnknownWithoutPrompt(t *testing.T) {
	surface := &countingSurface{answer: true}
	b := newBridge(surface, nil)

	ok, err := b.RequestApproval(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrUnknownCollector)
	require.False(t, ok)
	require.Zero(t, surface.count())
	require.False(t, b.Consent().IsApproved("ghost"))
}

func TestRequestApprovalPromptsWithRegisteredDescription(t *testing.T) {
	surface := &describingSurface{}
	b := newBridge(surface, nil)
	require.True(t, b.Register("storageKeys", constant(value.Null()), collector.WithDescription("Lists key names")))

	ok, err := b.RequestApproval(context.Background(), "storageKeys")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"Lists key names"}, surface.descriptions)
	require.True(t, b.Consent().IsApproved("storageKeys"))
}

// describingSurface approves everything and keeps each prompt's description.
type describingSurface struct {
	descriptions []string
}

func (s *describingSurface) Confirm(_ context.Context, p consent.Prompt) (bool, error) {
	s.descriptions = append(s.descriptions, p.Description)
	return true, nil
}
