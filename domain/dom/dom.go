// Package dom provides a headless live document.
//
// A Document wraps a parsed golang.org/x/net/html tree and keeps the live
// element properties (checked, value) beside the attribute set, the way a
// browser does: once a property is assigned it no longer follows its HTML
// attribute. Interaction events are delivered through body-level listeners.
//
// All tree access is serialized by the document lock. Engine code runs
// inside Do or inside a listener called by Dispatch; the element helpers in
// this package never lock on their own.
package dom

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	// ErrNoBody is returned when a parsed document has no body element.
	ErrNoBody = errors.New("document has no body")

	// ErrDetached is returned when replacing or removing a node without a parent.
	ErrDetached = errors.New("node is not attached")
)

// Listener handles one interaction event. It runs with the document lock held.
type Listener func(ev *Event) error

// Event is a raw interaction on an element of the document.
type Event struct {
	Type     string
	Target   *html.Node
	Key      string
	AltKey   bool
	CtrlKey  bool
	ShiftKey bool
	MetaKey  bool
}

type liveProps struct {
	checked *bool
	value   *string
}

// Document is the live element tree of one page.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	body      *html.Node
	props     map[*html.Node]*liveProps
	listeners map[string][]Listener
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	body := htmlquery.FindOne(root, "//body")
	if body == nil {
		return nil, ErrNoBody
	}

	return &Document{
		root:      root,
		body:      body,
		props:     make(map[*html.Node]*liveProps),
		listeners: make(map[string][]Listener),
	}, nil
}

// Do runs fn with the document lock held.
func (d *Document) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element.
func (d *Document) Body() *html.Node {
	return d.body
}

// Render writes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// QueryAll returns every node matching the XPath expression.
func (d *Document) QueryAll(expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr, err)
	}
	return nodes, nil
}

// QueryOne returns the first node matching the XPath expression, or nil.
func (d *Document) QueryOne(expr string) (*html.Node, error) {
	n, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr, err)
	}
	return n, nil
}

// AddEventListener registers a body-level listener for one event type.
func (d *Document) AddEventListener(eventType string, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], l)
}

// Dispatch delivers ev to every body listener of its type, provided the
// target lies inside body. It reports whether the event reached body and
// joins the errors returned by listeners.
func (d *Document) Dispatch(ev *Event) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.Target == nil || !Contains(d.body, ev.Target) {
		return false, nil
	}

	var errs []error
	for _, l := range d.listeners[ev.Type] {
		if err := l(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return true, errors.Join(errs...)
}

// ReplaceWith puts repl at the position of old and detaches old.
func (d *Document) ReplaceWith(old, repl *html.Node) error {
	parent := old.Parent
	if parent == nil {
		return ErrDetached
	}
	if repl.Parent != nil {
		repl.Parent.RemoveChild(repl)
	}
	parent.InsertBefore(repl, old)
	parent.RemoveChild(old)
	d.forget(old)
	return nil
}

// Remove detaches n from its parent.
func (d *Document) Remove(n *html.Node) error {
	if n.Parent == nil {
		return ErrDetached
	}
	n.Parent.RemoveChild(n)
	d.forget(n)
	return nil
}

// forget drops live properties of a detached subtree.
func (d *Document) forget(n *html.Node) {
	delete(d.props, n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.forget(c)
	}
}

func (d *Document) liveProps(n *html.Node) *liveProps {
	p := d.props[n]
	if p == nil {
		p = &liveProps{}
		d.props[n] = p
	}
	return p
}

// Checked returns the live checked property. Until assigned it follows
// the presence of the checked attribute.
func (d *Document) Checked(n *html.Node) bool {
	if p := d.props[n]; p != nil && p.checked != nil {
		return *p.checked
	}
	return HasAttr(n, "checked")
}

// SetChecked assigns the live checked property. The attribute is untouched.
func (d *Document) SetChecked(n *html.Node, v bool) {
	d.liveProps(n).checked = &v
}

// Value returns the live value property. Until assigned it follows the
// value attribute, or the text of a textarea.
func (d *Document) Value(n *html.Node) string {
	if p := d.props[n]; p != nil && p.value != nil {
		return *p.value
	}
	if n.Data == "textarea" {
		return TextContent(n)
	}
	v, _ := Attr(n, "value")
	return v
}

// SetValue assigns the live value property. The attribute is untouched.
func (d *Document) SetValue(n *html.Node, v string) {
	d.liveProps(n).value = &v
}
