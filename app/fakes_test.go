package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/monoclient/adapters/transport"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/domain/protocol"
	"github.com/artpar/monoclient/ports"
)

const pageURL = "http://mono.test/app"

var errUnreachable = errors.New("connection refused")

// reply is one scripted answer to a pull: a raw JSON instruction or an error.
type reply struct {
	body string
	err  error
}

func ok(body string) reply { return reply{body: body} }
func fail() reply          { return reply{err: errUnreachable} }

type sent struct {
	url     string
	payload any
	timeout time.Duration
}

// fakeTransport answers pulls from a script and records every call. Once
// the script runs out it answers expired. Bodies the result rejects come
// back as *transport.DecodeError, as from the real client.
type fakeTransport struct {
	mu        sync.Mutex
	replies   []reply
	calls     []sent
	events    []protocol.EventsRequest
	eventErr  error
	onPull    func()
	blockPull bool
}

func newFakeTransport(replies ...reply) *fakeTransport {
	return &fakeTransport{replies: replies}
}

func (f *fakeTransport) Send(ctx context.Context, method, url string, payload, result any, timeout time.Duration) error {
	f.mu.Lock()
	f.calls = append(f.calls, sent{url: url, payload: payload, timeout: timeout})

	switch p := payload.(type) {
	case protocol.EventsRequest:
		f.events = append(f.events, p)
		err := f.eventErr
		f.mu.Unlock()
		return err

	case protocol.PullRequest:
		if f.blockPull {
			f.mu.Unlock()
			<-ctx.Done()
			return ctx.Err()
		}
		r := reply{body: `{"kind":"expired"}`}
		if len(f.replies) > 0 {
			r, f.replies = f.replies[0], f.replies[1:]
		}
		hook := f.onPull
		f.mu.Unlock()

		if hook != nil {
			hook()
		}
		if r.err != nil {
			return r.err
		}
		if err := json.Unmarshal([]byte(r.body), result); err != nil {
			return &transport.DecodeError{Body: r.body, Err: err}
		}
		return nil

	default:
		f.mu.Unlock()
		return errors.New("unexpected payload")
	}
}

func (f *fakeTransport) pulls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if _, ok := c.payload.(protocol.PullRequest); ok {
			n++
		}
	}
	return n
}

func (f *fakeTransport) sentEvents() []protocol.EventsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.EventsRequest, len(f.events))
	copy(out, f.events)
	return out
}

var _ ports.Transport = (*fakeTransport)(nil)

// fakeEvaluator records scripts and the text of #out at the time each ran.
type fakeEvaluator struct {
	doc  *dom.Document
	code []string
	seen []string
	err  error
}

func (e *fakeEvaluator) Eval(code string) error {
	e.code = append(e.code, code)
	if n, _ := e.doc.QueryOne("//*[@id='out']"); n != nil {
		e.seen = append(e.seen, dom.TextContent(n))
	}
	return e.err
}

// fakeIndicator records state changes.
type fakeIndicator struct {
	mu     sync.Mutex
	states []string
}

func (i *fakeIndicator) record(s string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.states = append(i.states, s)
}

func (i *fakeIndicator) Normal()   { i.record("normal") }
func (i *fakeIndicator) Degraded() { i.record("degraded") }
func (i *fakeIndicator) Expired()  { i.record("expired") }

func (i *fakeIndicator) String() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return strings.Join(i.states, ",")
}

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return doc
}
