// Package app runs the client side of a mono page: event capture, the
// sync loop and the root lookup that ties them to one document.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/monoclient/adapters/metrics"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/domain/path"
	"github.com/artpar/monoclient/ports"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

var (
	// ErrNoRoot is returned when the document has no UI root.
	ErrNoRoot = errors.New("mono_id not found")

	// ErrMultipleRoots is returned when the document has more than one UI root.
	ErrMultipleRoots = errors.New("multiple mono_id not supported yet")

	// ErrRootNotFound is returned when the root of the session is gone
	// from the document.
	ErrRootNotFound = errors.New("can't find mono root")

	// ErrStopped is returned for interactions after the client stopped.
	ErrStopped = errors.New("client stopped")
)

// Roots returns the mono ids of every UI root in document order. The
// caller holds the document lock.
func Roots(doc *dom.Document) ([]string, error) {
	nodes, err := doc.QueryAll("//*[@" + path.RootAttr + "]")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		id, _ := dom.Attr(n, path.RootAttr)
		ids = append(ids, id)
	}
	return ids, nil
}

// FindRoot returns the element whose mono id is monoID. The caller holds
// the document lock.
func FindRoot(doc *dom.Document, monoID string) (*html.Node, error) {
	nodes, err := doc.QueryAll("//*[@" + path.RootAttr + "]")
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if id, _ := dom.Attr(n, path.RootAttr); id == monoID {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRootNotFound, monoID)
}

// ClientConfig configures a client.
type ClientConfig struct {
	Document     *dom.Document
	Transport    ports.Transport
	Evaluator    ports.Evaluator
	Indicator    ports.Indicator
	Sleeper      ports.Sleeper
	Clock        ports.Clock
	PageURL      string
	EventTimeout time.Duration
	RetryBackoff time.Duration
	Metrics      *metrics.Collector
	Logger       zerolog.Logger
}

// Client drives one document against its server.
type Client struct {
	doc     *dom.Document
	monoID  string
	capture *Capture
	sync    *SyncLoop
	logger  zerolog.Logger
}

// NewClient finds the single UI root of the document and wires capture
// and the sync loop to it.
func NewClient(cfg ClientConfig) (*Client, error) {
	var (
		ids []string
		err error
	)
	cfg.Document.Do(func() {
		ids, err = Roots(cfg.Document)
	})
	if err != nil {
		return nil, fmt.Errorf("find roots: %w", err)
	}
	switch {
	case len(ids) == 0:
		return nil, ErrNoRoot
	case len(ids) > 1:
		return nil, fmt.Errorf("%w: found %d", ErrMultipleRoots, len(ids))
	}
	monoID := ids[0]

	return &Client{
		doc:    cfg.Document,
		monoID: monoID,
		capture: NewCapture(CaptureConfig{
			Document:     cfg.Document,
			Transport:    cfg.Transport,
			PageURL:      cfg.PageURL,
			EventTimeout: cfg.EventTimeout,
			Metrics:      cfg.Metrics,
			Logger:       cfg.Logger,
		}),
		sync: NewSyncLoop(SyncConfig{
			Document:     cfg.Document,
			Transport:    cfg.Transport,
			Evaluator:    cfg.Evaluator,
			Indicator:    cfg.Indicator,
			Sleeper:      cfg.Sleeper,
			Clock:        cfg.Clock,
			PageURL:      cfg.PageURL,
			MonoID:       monoID,
			RetryBackoff: cfg.RetryBackoff,
			Metrics:      cfg.Metrics,
			Logger:       cfg.Logger,
		}),
		logger: cfg.Logger,
	}, nil
}

// Run starts event capture and runs the sync loop until it stops. Capture
// then stops taking interactions and Run waits for in-flight deliveries.
func (c *Client) Run(ctx context.Context) error {
	c.capture.Listen(ctx)
	err := c.sync.Run(ctx)
	c.capture.Stop()
	return err
}

// MonoID returns the id of the UI root.
func (c *Client) MonoID() string {
	return c.monoID
}

// State returns the sync loop state.
func (c *Client) State() State {
	return c.sync.State()
}

// Pending returns the number of held input events.
func (c *Client) Pending() int {
	return c.capture.Pending()
}

// Document returns the live document.
func (c *Client) Document() *dom.Document {
	return c.doc
}

// Interaction is a synthetic user action at an element under the root.
type Interaction struct {
	Type    string    `json:"type"`
	Path    path.Path `json:"path"`
	Key     string    `json:"key,omitempty"`
	Alt     bool      `json:"alt,omitempty"`
	Ctrl    bool      `json:"ctrl,omitempty"`
	Shift   bool      `json:"shift,omitempty"`
	Meta    bool      `json:"meta,omitempty"`
	Value   *string   `json:"value,omitempty"`
	Checked *bool     `json:"checked,omitempty"`
}

// Interact assigns the live value or checked state when given, then
// dispatches the event at the element addressed by in.Path. It returns
// the listener error, if any, and ErrStopped once Run has returned.
func (c *Client) Interact(in Interaction) error {
	var (
		target *html.Node
		err    error
	)
	c.doc.Do(func() {
		if c.capture.stopped {
			err = ErrStopped
			return
		}
		var root *html.Node
		if root, err = FindRoot(c.doc, c.monoID); err != nil {
			return
		}
		if target, err = path.Locate(root, in.Path); err != nil {
			return
		}
		if in.Value != nil {
			c.doc.SetValue(target, *in.Value)
		}
		if in.Checked != nil {
			c.doc.SetChecked(target, *in.Checked)
		}
	})
	if errors.Is(err, ErrStopped) {
		return err
	}
	if err != nil {
		return fmt.Errorf("locate target: %w", err)
	}

	_, err = c.doc.Dispatch(&dom.Event{
		Type:     in.Type,
		Target:   target,
		Key:      in.Key,
		AltKey:   in.Alt,
		CtrlKey:  in.Ctrl,
		ShiftKey: in.Shift,
		MetaKey:  in.Meta,
	})
	return err
}
