package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/monoclient/adapters/clock"
	"github.com/artpar/monoclient/app"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/domain/event"
	"github.com/artpar/monoclient/domain/path"
	"github.com/rs/zerolog"
)

func newClient(t *testing.T, doc *dom.Document, tr *fakeTransport) (*app.Client, error) {
	t.Helper()
	clk := clock.NewFake(time.Now())
	return app.NewClient(app.ClientConfig{
		Document:  doc,
		Transport: tr,
		Evaluator: &fakeEvaluator{doc: doc},
		Sleeper:   clk,
		Clock:     clk,
		PageURL:   pageURL,
		Logger:    zerolog.Nop(),
	})
}

func TestNewClient_Roots(t *testing.T) {
	tests := []struct {
		name string
		page string
		want error
	}{
		{"none", `<html><body><div></div></body></html>`, app.ErrNoRoot},
		{"two", `<html><body><div mono_id="a"></div><div mono_id="b"></div></body></html>`, app.ErrMultipleRoots},
		{"nested", `<html><body><div mono_id="a"><div mono_id="b"></div></div></body></html>`, app.ErrMultipleRoots},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newClient(t, parse(t, tt.page), newFakeTransport())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewClient_SingleRoot(t *testing.T) {
	c, err := newClient(t, parse(t, capturePage), newFakeTransport())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if c.MonoID() != "m1" {
		t.Errorf("MonoID = %q, want m1", c.MonoID())
	}
	if c.State() != app.StateActive {
		t.Errorf("State = %v, want active", c.State())
	}
}

func TestClient_RunCapturesWhileSyncing(t *testing.T) {
	doc := parse(t, capturePage)
	tr := newFakeTransport(ok(`{"kind":"ignore"}`), ok(`{"kind":"expired"}`))
	c, err := newClient(t, doc, tr)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	typed := "abc"
	var interactErr error
	pulls := 0
	tr.onPull = func() {
		pulls++
		if pulls != 1 {
			return
		}
		if interactErr = c.Interact(app.Interaction{Type: "input", Path: path.Path{1}, Value: &typed}); interactErr != nil {
			return
		}
		interactErr = c.Interact(app.Interaction{Type: "click", Path: path.Path{0}, Ctrl: true})
	}

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if interactErr != nil {
		t.Fatalf("Interact error: %v", interactErr)
	}

	events := tr.sentEvents()
	if len(events) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(events))
	}
	got := events[0].Events
	if len(got) != 2 || got[0].Kind != event.Input || got[0].Input.Value != "abc" || got[1].Kind != event.Click {
		t.Errorf("events = %+v, want [input abc, click]", got)
	}
	if c.State() != app.StateExpired {
		t.Errorf("State = %v, want expired", c.State())
	}
}

func TestClient_InteractBadPath(t *testing.T) {
	c, err := newClient(t, parse(t, capturePage), newFakeTransport())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	err = c.Interact(app.Interaction{Type: "click", Path: path.Path{9}})
	if !errors.Is(err, path.ErrOutOfBounds) {
		t.Errorf("error = %v, want ErrOutOfBounds", err)
	}
}

func TestClient_InteractSetsCheckedBeforeDispatch(t *testing.T) {
	doc := parse(t, capturePage)
	c, err := newClient(t, doc, newFakeTransport())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	checked := true
	if err := c.Interact(app.Interaction{Type: "input", Path: path.Path{2}, Checked: &checked}); err != nil {
		t.Fatalf("Interact error: %v", err)
	}

	cb, _ := doc.QueryOne("//*[@id='cb']")
	var got bool
	doc.Do(func() { got = doc.Checked(cb) })
	if !got {
		t.Error("checked = false, want true")
	}
}

func TestClient_InteractAfterRunReturnsStopped(t *testing.T) {
	doc := parse(t, capturePage)
	tr := newFakeTransport(ok(`{"kind":"expired"}`))
	c, err := newClient(t, doc, tr)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	typed := "late"
	err = c.Interact(app.Interaction{Type: "input", Path: path.Path{3}, Value: &typed})
	if !errors.Is(err, app.ErrStopped) {
		t.Errorf("error = %v, want ErrStopped", err)
	}
	if got := len(tr.sentEvents()); got != 0 {
		t.Errorf("deliveries = %d, want 0", got)
	}

	n, _ := doc.QueryOne("//*[@id='instant']")
	var value string
	doc.Do(func() { value = doc.Value(n) })
	if value != "v0" {
		t.Errorf("value = %q, want v0 (untouched after stop)", value)
	}
}
