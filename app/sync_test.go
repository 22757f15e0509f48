package app_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/artpar/monoclient/adapters/clock"
	"github.com/artpar/monoclient/adapters/metrics"
	"github.com/artpar/monoclient/adapters/transport"
	"github.com/artpar/monoclient/app"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/domain/node"
	"github.com/artpar/monoclient/domain/path"
	"github.com/artpar/monoclient/domain/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

const syncPage = `<html><body>
<div mono_id="m1"><p id="out">zero</p><ul><li>a</li></ul></div>
</body></html>`

type loopFixture struct {
	doc       *dom.Document
	transport *fakeTransport
	evaluator *fakeEvaluator
	indicator *fakeIndicator
	clock     *clock.Fake
	metrics   *metrics.Collector
	logs      *bytes.Buffer
	loop      *app.SyncLoop
}

func newLoop(t *testing.T, replies ...reply) *loopFixture {
	t.Helper()
	f := &loopFixture{
		doc:       parse(t, syncPage),
		transport: newFakeTransport(replies...),
		indicator: &fakeIndicator{},
		clock:     clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		metrics:   metrics.NewWithRegistry(prometheus.NewRegistry()),
		logs:      &bytes.Buffer{},
	}
	f.evaluator = &fakeEvaluator{doc: f.doc}
	f.loop = app.NewSyncLoop(app.SyncConfig{
		Document:  f.doc,
		Transport: f.transport,
		Evaluator: f.evaluator,
		Indicator: f.indicator,
		Sleeper:   f.clock,
		Clock:     f.clock,
		PageURL:   pageURL,
		MonoID:    "m1",
		Metrics:   f.metrics,
		Logger:    zerolog.New(f.logs),
	})
	return f
}

func (f *loopFixture) text(t *testing.T) string {
	t.Helper()
	n, _ := f.doc.QueryOne("//*[@id='out']")
	if n == nil {
		t.Fatal("#out not found")
	}
	return dom.TextContent(n)
}

func TestSyncLoop_PullRequest(t *testing.T) {
	f := newLoop(t, ok(`{"kind":"expired"}`))

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	call := f.transport.calls[0]
	if call.url != pageURL {
		t.Errorf("url = %q, want %q", call.url, pageURL)
	}
	if call.timeout != 0 {
		t.Errorf("pull timeout = %v, want none", call.timeout)
	}
	want := protocol.PullRequest{Kind: "pull", MonoID: "m1"}
	if call.payload != want {
		t.Errorf("payload = %+v, want %+v", call.payload, want)
	}
}

func TestSyncLoop_RetriesUntilSuccess(t *testing.T) {
	const failures = 3
	replies := make([]reply, 0, failures+1)
	for i := 0; i < failures; i++ {
		replies = append(replies, fail())
	}
	replies = append(replies, ok(`{"kind":"expired"}`))
	f := newLoop(t, replies...)
	start := f.clock.Now()

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := f.clock.Now().Sub(start); got != failures*app.DefaultRetryBackoff {
		t.Errorf("time spent retrying = %v, want %v", got, failures*app.DefaultRetryBackoff)
	}
	if !strings.Contains(f.logs.String(), `"after":3000,"message":"reconnected"`) {
		t.Errorf("logs missing reconnect after 3s:\n%s", f.logs.String())
	}
	if got := f.transport.pulls(); got != failures+1 {
		t.Errorf("pulls = %d, want %d", got, failures+1)
	}
	slept := f.clock.Slept()
	if len(slept) != failures {
		t.Fatalf("sleeps = %d, want %d", len(slept), failures)
	}
	for i, d := range slept {
		if d != app.DefaultRetryBackoff {
			t.Errorf("sleep %d = %v, want %v", i, d, app.DefaultRetryBackoff)
		}
	}
	if got := f.indicator.String(); got != "degraded,degraded,degraded,normal,expired" {
		t.Errorf("indicator = %s", got)
	}
	if got := testutil.ToFloat64(f.metrics.PullsTotal.WithLabelValues("error")); got != failures {
		t.Errorf("error pulls = %v, want %d", got, failures)
	}
	if got := testutil.ToFloat64(f.metrics.PullsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok pulls = %v, want 1", got)
	}
}

func TestSyncLoop_WarnsOncePerFailureStreak(t *testing.T) {
	f := newLoop(t,
		fail(), fail(), ok(`{"kind":"ignore"}`),
		fail(), ok(`{"kind":"expired"}`),
	)

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := strings.Count(f.logs.String(), "retrying..."); got != 2 {
		t.Errorf("retry warnings = %d, want 2", got)
	}
}

func TestSyncLoop_CustomBackoff(t *testing.T) {
	doc := parse(t, syncPage)
	fake := clock.NewFake(time.Now())
	loop := app.NewSyncLoop(app.SyncConfig{
		Document:     doc,
		Transport:    newFakeTransport(fail()),
		Sleeper:      fake,
		PageURL:      pageURL,
		MonoID:       "m1",
		RetryBackoff: 250 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if slept := fake.Slept(); len(slept) != 1 || slept[0] != 250*time.Millisecond {
		t.Errorf("slept = %v, want [250ms]", slept)
	}
}

func TestSyncLoop_ExpiredStops(t *testing.T) {
	f := newLoop(t, ok(`{"kind":"expired"}`), ok(`{"kind":"ignore"}`))

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := f.transport.pulls(); got != 1 {
		t.Errorf("pulls = %d, want 1", got)
	}
	if f.loop.State() != app.StateExpired {
		t.Errorf("state = %v, want expired", f.loop.State())
	}
	if !f.loop.State().Terminal() {
		t.Error("expired should be terminal")
	}
	if got := f.indicator.String(); got != "normal,expired" {
		t.Errorf("indicator = %s", got)
	}
}

func TestSyncLoop_IgnoreContinues(t *testing.T) {
	f := newLoop(t, ok(`{"kind":"ignore"}`), ok(`{"kind":"ignore"}`), ok(`{"kind":"expired"}`))

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := f.transport.pulls(); got != 3 {
		t.Errorf("pulls = %d, want 3", got)
	}
	if f.text(t) != "zero" {
		t.Errorf("document changed on ignore")
	}
}

func TestSyncLoop_ServerErrorIsFatal(t *testing.T) {
	f := newLoop(t, ok(`{"kind":"error","message":"session crashed"}`), ok(`{"kind":"ignore"}`))

	err := f.loop.Run(context.Background())

	var se *app.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *ServerError", err)
	}
	if se.Message != "session crashed" {
		t.Errorf("Message = %q, want session crashed", se.Message)
	}
	if f.loop.State() != app.StateFatal {
		t.Errorf("state = %v, want fatal", f.loop.State())
	}
	if got := f.transport.pulls(); got != 1 {
		t.Errorf("pulls = %d, want 1", got)
	}
}

func TestSyncLoop_AppliesEntriesInOrder(t *testing.T) {
	f := newLoop(t, ok(`{"kind":"events","events":[
		{"update":{"el":[0],"set_attrs":{"text":"one"}}},
		{"eval":"ping()"},
		{"kind":"update","updates":[{"el":[0],"set_attrs":{"text":"two"}},{"el":[1],"set_children":{"1":{"tag":"li","text":"b"}}}]},
		{"kind":"eval","code":"ping()"}
	]}`))

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := f.text(t); got != "two" {
		t.Errorf("text = %q, want two", got)
	}
	if got := strings.Join(f.evaluator.seen, ","); got != "one,two" {
		t.Errorf("evals saw %q, want one,two", got)
	}
	ul, _ := f.doc.QueryOne("//ul")
	if n := len(dom.Children(ul)); n != 2 {
		t.Errorf("list children = %d, want 2", n)
	}
	if got := testutil.ToFloat64(f.metrics.UpdatesApplied); got != 3 {
		t.Errorf("updates applied = %v, want 3", got)
	}
	if got := testutil.ToFloat64(f.metrics.EvalsTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("evals = %v, want 2", got)
	}
}

func TestSyncLoop_RelocatesRootForEachUpdate(t *testing.T) {
	f := newLoop(t, ok(`{"kind":"events","events":[
		{"kind":"update","updates":[
			{"el":[],"set":{"tag":"section","mono_id":"m1","children":[{"tag":"p","id":"out","text":"new"}]}},
			{"el":[0],"set_attrs":{"text":"after"}}
		]}
	]}`))

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	root, _ := f.doc.QueryOne("//*[@mono_id='m1']")
	if root == nil || root.Data != "section" {
		t.Fatalf("root = %v, want section", root)
	}
	if got := f.text(t); got != "after" {
		t.Errorf("text = %q, want after", got)
	}
}

func TestSyncLoop_ProtocolErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		evalErr error
		want    error
		decode  bool
	}{
		{
			name:  "path out of bounds",
			reply: `{"kind":"events","events":[{"update":{"el":[7],"set_attrs":{"text":"x"}}}]}`,
			want:  path.ErrOutOfBounds,
		},
		{
			name: "root removed",
			reply: `{"kind":"events","events":[{"kind":"update","updates":[
				{"el":[],"set":{"tag":"div"}},
				{"el":[0],"set_attrs":{"text":"x"}}
			]}]}`,
			want: app.ErrRootNotFound,
		},
		{
			name:    "eval failure",
			reply:   `{"kind":"events","events":[{"eval":"boom()"}]}`,
			evalErr: errors.New("boom is not defined"),
		},
		{
			name:  "unknown instruction",
			reply: `{"kind":"reload"}`,
			want:  app.ErrUnknownInstruction,
		},
		{
			name:   "children not an array",
			reply:  `{"kind":"events","events":[{"update":{"el":[0],"set":{"children":"x"}}}]}`,
			want:   node.ErrChildrenNotArray,
			decode: true,
		},
		{
			name:   "non-integer child position",
			reply:  `{"kind":"events","events":[{"update":{"el":[1],"set_children":{"abc":{"tag":"li"}}}}]}`,
			decode: true,
		},
		{
			name:   "unknown entry kind",
			reply:  `{"kind":"events","events":[{"kind":"bogus"}]}`,
			want:   protocol.ErrUnknownEntry,
			decode: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoop(t, ok(tt.reply), ok(`{"kind":"ignore"}`))
			f.evaluator.err = tt.evalErr

			err := f.loop.Run(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			want := tt.want
			if want == nil {
				want = tt.evalErr
			}
			if want != nil && !errors.Is(err, want) {
				t.Errorf("error = %v, want %v", err, want)
			}
			if transport.IsDecode(err) != tt.decode {
				t.Errorf("decode error = %v, want %v", transport.IsDecode(err), tt.decode)
			}
			if slept := f.clock.Slept(); len(slept) != 0 {
				t.Errorf("slept = %v, want no retry", slept)
			}
			if strings.Contains(f.indicator.String(), "degraded") {
				t.Errorf("indicator = %s, want no degraded state", f.indicator.String())
			}
			if f.loop.State() != app.StateFatal {
				t.Errorf("state = %v, want fatal", f.loop.State())
			}
			if got := f.transport.pulls(); got != 1 {
				t.Errorf("pulls = %d, want 1", got)
			}
		})
	}
}

func TestSyncLoop_NoEvaluator(t *testing.T) {
	doc := parse(t, syncPage)
	loop := app.NewSyncLoop(app.SyncConfig{
		Document:  doc,
		Transport: newFakeTransport(ok(`{"kind":"events","events":[{"eval":"x()"}]}`)),
		Sleeper:   clock.NewFake(time.Now()),
		PageURL:   pageURL,
		MonoID:    "m1",
		Logger:    zerolog.Nop(),
	})

	if err := loop.Run(context.Background()); !errors.Is(err, app.ErrNoEvaluator) {
		t.Errorf("error = %v, want ErrNoEvaluator", err)
	}
}

func TestSyncLoop_ContextCancel(t *testing.T) {
	f := newLoop(t)
	f.transport.blockPull = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSyncLoop_StateDuringRetry(t *testing.T) {
	f := newLoop(t, fail(), ok(`{"kind":"expired"}`))

	var states []app.State
	f.transport.onPull = func() { states = append(states, f.loop.State()) }

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(states) != 2 || states[0] != app.StateActive || states[1] != app.StateRetrying {
		t.Errorf("states at pull = %v, want [active retrying]", states)
	}
}

func TestState_String(t *testing.T) {
	tests := map[app.State]string{
		app.StateActive:   "active",
		app.StateRetrying: "retrying",
		app.StateExpired:  "expired",
		app.StateFatal:    "fatal",
		app.State(9):      "state(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(s), got, want)
		}
	}
}

func TestSyncLoop_PullDurationFollowsClock(t *testing.T) {
	f := newLoop(t, ok(`{"kind":"expired"}`))
	f.transport.onPull = func() { f.clock.Advance(2 * time.Second) }

	if err := f.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	const want = `
# HELP monoclient_pull_duration_seconds Time a pull request stayed open
# TYPE monoclient_pull_duration_seconds histogram
monoclient_pull_duration_seconds_bucket{le="0.01"} 0
monoclient_pull_duration_seconds_bucket{le="0.1"} 0
monoclient_pull_duration_seconds_bucket{le="0.5"} 0
monoclient_pull_duration_seconds_bucket{le="1"} 0
monoclient_pull_duration_seconds_bucket{le="5"} 1
monoclient_pull_duration_seconds_bucket{le="15"} 1
monoclient_pull_duration_seconds_bucket{le="30"} 1
monoclient_pull_duration_seconds_bucket{le="60"} 1
monoclient_pull_duration_seconds_bucket{le="120"} 1
monoclient_pull_duration_seconds_bucket{le="+Inf"} 1
monoclient_pull_duration_seconds_sum 2
monoclient_pull_duration_seconds_count 1
`
	if err := testutil.CollectAndCompare(f.metrics.PullDuration, strings.NewReader(want)); err != nil {
		t.Error(err)
	}
}
