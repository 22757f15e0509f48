package app

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/artpar/monoclient/adapters/metrics"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/domain/event"
	"github.com/artpar/monoclient/domain/path"
	"github.com/artpar/monoclient/domain/protocol"
	"github.com/artpar/monoclient/ports"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// DefaultEventTimeout bounds one event delivery.
const DefaultEventTimeout = 5 * time.Second

// DelayAttr set to DelayValue on an input element holds its input events
// until the next delivery.
const (
	DelayAttr  = "on_input"
	DelayValue = "delay"
)

// ErrInputOutsideRoot is returned when an input event fires on an element
// that no UI root contains.
var ErrInputOutsideRoot = errors.New("can't find element for input event")

// Markers maps each interaction kind to the attribute that opts an element
// into reporting it. Input needs no marker.
var Markers = map[event.Kind]string{
	event.Click:    "on_click",
	event.Dblclick: "on_dblclick",
	event.Keydown:  "on_keydown",
	event.Change:   "on_change",
	event.Blur:     "on_blur",
}

// CaptureConfig configures event capture.
type CaptureConfig struct {
	Document     *dom.Document
	Transport    ports.Transport
	PageURL      string
	EventTimeout time.Duration
	Metrics      *metrics.Collector
	Logger       zerolog.Logger
}

// Capture turns interactions on the document into protocol events and
// delivers them to the server.
type Capture struct {
	doc          *dom.Document
	transport    ports.Transport
	pageURL      string
	eventTimeout time.Duration
	metrics      *metrics.Collector
	logger       zerolog.Logger

	// pending and stopped are guarded by the document lock.
	pending *event.Pending
	stopped bool

	ctx      context.Context
	inflight sync.WaitGroup
}

// NewCapture creates event capture for one document.
func NewCapture(cfg CaptureConfig) *Capture {
	timeout := cfg.EventTimeout
	if timeout == 0 {
		timeout = DefaultEventTimeout
	}

	return &Capture{
		doc:          cfg.Document,
		transport:    cfg.Transport,
		pageURL:      cfg.PageURL,
		eventTimeout: timeout,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With().Str("component", "capture").Logger(),
		pending:      event.NewPending(),
		ctx:          context.Background(),
	}
}

// Listen registers one body listener per interaction kind. Deliveries
// started afterwards are cancelled with ctx.
func (c *Capture) Listen(ctx context.Context) {
	c.ctx = ctx

	c.doc.AddEventListener(string(event.Click), c.onPointer(event.Click))
	c.doc.AddEventListener(string(event.Dblclick), c.onPointer(event.Dblclick))
	c.doc.AddEventListener(string(event.Keydown), c.onKeydown)
	c.doc.AddEventListener(string(event.Change), c.onStub(event.Change))
	c.doc.AddEventListener(string(event.Blur), c.onStub(event.Blur))
	c.doc.AddEventListener(string(event.Input), c.onInput)
}

// Wait blocks until every started delivery has settled. Events dispatched
// concurrently with Wait may start new deliveries; Stop rules that out.
func (c *Capture) Wait() {
	c.inflight.Wait()
}

// Stop makes the listeners ignore further events, then blocks until every
// started delivery has settled.
func (c *Capture) Stop() {
	c.doc.Do(func() {
		c.stopped = true
	})
	c.inflight.Wait()
}

// Pending returns the number of held input events.
func (c *Capture) Pending() int {
	var n int
	c.doc.Do(func() {
		n = c.pending.Len()
	})
	return n
}

func (c *Capture) onPointer(kind event.Kind) dom.Listener {
	return func(raw *dom.Event) error {
		found, ok := path.Resolve(raw.Target, Markers[kind])
		if !ok {
			return nil
		}
		c.post(found.MonoID, event.NewPointer(kind, found.Path, specialKeys(raw)))
		return nil
	}
}

func (c *Capture) onKeydown(raw *dom.Event) error {
	keys := specialKeys(raw)
	if event.IsLoneMeta(raw.Key, keys) {
		return nil
	}

	found, ok := path.Resolve(raw.Target, Markers[event.Keydown])
	if !ok {
		return nil
	}
	c.post(found.MonoID, event.NewKeydown(found.Path, raw.Key, keys))
	return nil
}

func (c *Capture) onStub(kind event.Kind) dom.Listener {
	return func(raw *dom.Event) error {
		found, ok := path.Resolve(raw.Target, Markers[kind])
		if !ok {
			return nil
		}
		c.post(found.MonoID, event.NewStub(kind, found.Path))
		return nil
	}
}

func (c *Capture) onInput(raw *dom.Event) error {
	found, ok := path.Resolve(raw.Target, "")
	if !ok {
		return ErrInputOutsideRoot
	}

	ev := event.NewInput(found.Path, c.inputValue(raw.Target))

	if v, _ := dom.Attr(raw.Target, DelayAttr); v == DelayValue {
		c.pending.Put(ev)
		c.observePending()
		return nil
	}

	c.pending.Discard(found.Path)
	c.post(found.MonoID, ev)
	return nil
}

// inputValue reads the live state of an input target: "true" or "false"
// for a checkbox, the live value otherwise.
func (c *Capture) inputValue(el *html.Node) string {
	if el.Data == "input" {
		if t, _ := dom.Attr(el, "type"); strings.EqualFold(t, "checkbox") {
			return strconv.FormatBool(c.doc.Checked(el))
		}
	}
	return c.doc.Value(el)
}

// post sends the held inputs followed by trigger. It runs under the
// document lock; the network call does not.
func (c *Capture) post(monoID string, trigger event.Event) {
	if c.stopped {
		c.logger.Debug().Str("kind", string(trigger.Kind)).Msg("capture stopped, event dropped")
		return
	}
	events := append(c.pending.Drain(), trigger)
	c.observePending()

	log := c.logger.With().Str("mono_id", monoID).Logger()
	log.Debug().Str("kind", string(trigger.Kind)).Int("events", len(events)).Msg(">>")

	if c.metrics != nil {
		for _, ev := range events {
			c.metrics.EventsSent.WithLabelValues(string(ev.Kind)).Inc()
		}
	}

	req := protocol.NewEventsRequest(monoID, events)
	ctx := c.ctx

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		if err := c.transport.Send(ctx, "post", c.pageURL, req, nil, c.eventTimeout); err != nil {
			if c.metrics != nil {
				c.metrics.DeliveryFailures.Inc()
			}
			log.Error().Err(err).Int("events", len(events)).Msg("can't send event")
		}
	}()
}

func (c *Capture) observePending() {
	if c.metrics != nil {
		c.metrics.PendingInputs.Set(float64(c.pending.Len()))
	}
}

func specialKeys(raw *dom.Event) []string {
	return event.SpecialKeys(raw.AltKey, raw.CtrlKey, raw.ShiftKey, raw.MetaKey)
}
