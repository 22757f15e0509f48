package inspector_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/artpar/monoclient/adapters/inspector"
	"github.com/artpar/monoclient/adapters/metrics"
	"github.com/artpar/monoclient/app"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/domain/path"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type stubClient struct {
	doc     *dom.Document
	state   app.State
	pending int
	got     []app.Interaction
	err     error
}

func (c *stubClient) MonoID() string          { return "m1" }
func (c *stubClient) State() app.State        { return c.state }
func (c *stubClient) Pending() int            { return c.pending }
func (c *stubClient) Document() *dom.Document { return c.doc }

func (c *stubClient) Interact(in app.Interaction) error {
	c.got = append(c.got, in)
	return c.err
}

var (
	_ inspector.Client = (*stubClient)(nil)
	_ inspector.Client = (*app.Client)(nil)
)

func newServer(t *testing.T, gatherer prometheus.Gatherer) (*httptest.Server, *stubClient) {
	t.Helper()
	doc, err := dom.Parse(strings.NewReader(`<html><body><div mono_id="m1"><p>hi</p></div></body></html>`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	client := &stubClient{doc: doc, state: app.StateRetrying, pending: 2}
	router := inspector.NewRouter(inspector.Config{
		Client:   client,
		Version:  "1.2.3",
		Gatherer: gatherer,
		Logger:   zerolog.Nop(),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, client
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func post(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error: %v", url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestHealthz(t *testing.T) {
	server, _ := newServer(t, nil)

	resp, body := get(t, server.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var got map[string]string
	json.Unmarshal([]byte(body), &got)
	if got["status"] != "ok" {
		t.Errorf("status = %s, want ok", got["status"])
	}
}

func TestVersion(t *testing.T) {
	server, _ := newServer(t, nil)

	_, body := get(t, server.URL+"/version")
	var got inspector.VersionResponse
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if got.Version != "1.2.3" || got.Service != "monoclient" {
		t.Errorf("version = %+v", got)
	}
}

func TestState(t *testing.T) {
	server, _ := newServer(t, nil)

	resp, body := get(t, server.URL+"/state")
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	want := `{"state":"retrying","mono_id":"m1","pending_inputs":2}`
	if strings.TrimSpace(body) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestDOM(t *testing.T) {
	server, _ := newServer(t, nil)

	resp, body := get(t, server.URL+"/dom")
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q, want text/html", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(body, `<div mono_id="m1"><p>hi</p></div>`) {
		t.Errorf("body = %s", body)
	}
}

func TestInteract(t *testing.T) {
	server, client := newServer(t, nil)

	resp, body := post(t, server.URL+"/interact", `{"type":"input","path":[0],"value":"typed","shift":true}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204, body: %s", resp.StatusCode, body)
	}

	value := "typed"
	want := app.Interaction{Type: "input", Path: path.Path{0}, Value: &value, Shift: true}
	if len(client.got) != 1 || !reflect.DeepEqual(client.got[0], want) {
		t.Errorf("interactions = %+v, want %+v", client.got, want)
	}
}

func TestInteract_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid json", `{`, nil, http.StatusBadRequest, "bad_request"},
		{"unknown type", `{"type":"scroll","path":[]}`, nil, http.StatusBadRequest, "bad_request"},
		{"bad path", `{"type":"click","path":[5]}`, fmt.Errorf("locate target: %w", path.ErrOutOfBounds), http.StatusNotFound, "not_found"},
		{"listener failure", `{"type":"input","path":[]}`, app.ErrInputOutsideRoot, http.StatusUnprocessableEntity, "interaction_failed"},
		{"client stopped", `{"type":"click","path":[0]}`, app.ErrStopped, http.StatusConflict, "stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := newServer(t, nil)
			client.err = tt.err

			resp, body := post(t, server.URL+"/interact", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var got inspector.ErrorResponse
			if err := json.Unmarshal([]byte(body), &got); err != nil {
				t.Fatalf("Unmarshal error: %v, body: %s", err, body)
			}
			if len(got.Errors) != 1 || got.Errors[0].Code != tt.wantCode {
				t.Errorf("errors = %+v, want code %s", got.Errors, tt.wantCode)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	m.PullsTotal.WithLabelValues("ok").Inc()

	server, _ := newServer(t, reg)

	resp, body := get(t, server.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, `monoclient_pulls_total{result="ok"} 1`) {
		t.Errorf("metrics body missing pulls counter:\n%s", body)
	}
}

func TestMetrics_Disabled(t *testing.T) {
	server, _ := newServer(t, nil)

	resp, _ := get(t, server.URL+"/metrics")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// stepClock advances by step on every reading.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestLoggingMiddleware_TimesWithClock(t *testing.T) {
	var logs strings.Builder
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	clk := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: 250 * time.Millisecond}

	handler := inspector.NewLoggingMiddleware(logger, clk)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	out := logs.String()
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"duration":250`) {
		t.Errorf("logs = %s, want status 418 and duration 250ms", out)
	}
	if strings.Contains(out, "/healthz") {
		t.Errorf("logs = %s, want health checks skipped", out)
	}
}

func TestSwagger(t *testing.T) {
	server, _ := newServer(t, nil)

	resp, body := get(t, server.URL+"/swagger/doc.json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		t.Fatalf("Unmarshal error: %v, body: %s", err, body)
	}
	if doc.Info.Title != "monoclient inspector" {
		t.Errorf("title = %q", doc.Info.Title)
	}
	routes := map[string]string{
		"/healthz":  "get",
		"/version":  "get",
		"/state":    "get",
		"/dom":      "get",
		"/interact": "post",
	}
	for route, method := range routes {
		if _, ok := doc.Paths[route][method]; !ok {
			t.Errorf("doc.json missing %s %s", method, route)
		}
	}

	resp, body = get(t, server.URL+"/swagger/index.html")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "swagger-ui") {
		t.Errorf("index status = %d, want 200 with swagger-ui", resp.StatusCode)
	}
}
