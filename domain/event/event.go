// Package event defines the interaction events reported to the server and
// the map that coalesces delayed input events until the next delivery.
package event

import (
	"sort"

	"github.com/artpar/monoclient/domain/path"
)

// Kind names an interaction event.
type Kind string

const (
	Click    Kind = "click"
	Dblclick Kind = "dblclick"
	Keydown  Kind = "keydown"
	Change   Kind = "change"
	Blur     Kind = "blur"
	Input    Kind = "input"
)

// Kinds lists every captured kind in registration order.
var Kinds = []Kind{Click, Dblclick, Keydown, Change, Blur, Input}

// Pointer is the payload of click and dblclick.
type Pointer struct {
	SpecialKeys []string `json:"special_keys"`
}

// Key is the payload of keydown.
type Key struct {
	Key         string   `json:"key"`
	SpecialKeys []string `json:"special_keys"`
}

// Stub is the payload of change and blur.
type Stub struct {
	Stub string `json:"stub"`
}

// Value is the payload of input.
type Value struct {
	Value string `json:"value"`
}

// Event is one interaction as sent on the wire. Exactly one payload field
// is set, the one named by Kind.
type Event struct {
	Kind     Kind      `json:"kind"`
	El       path.Path `json:"el"`
	Click    *Pointer  `json:"click,omitempty"`
	Dblclick *Pointer  `json:"dblclick,omitempty"`
	Keydown  *Key      `json:"keydown,omitempty"`
	Change   *Stub     `json:"change,omitempty"`
	Blur     *Stub     `json:"blur,omitempty"`
	Input    *Value    `json:"input,omitempty"`
}

// NewPointer builds a click or dblclick event.
func NewPointer(kind Kind, el path.Path, keys []string) Event {
	ev := Event{Kind: kind, El: el}
	payload := &Pointer{SpecialKeys: keys}
	if kind == Dblclick {
		ev.Dblclick = payload
	} else {
		ev.Click = payload
	}
	return ev
}

// NewKeydown builds a keydown event.
func NewKeydown(el path.Path, key string, keys []string) Event {
	return Event{Kind: Keydown, El: el, Keydown: &Key{Key: key, SpecialKeys: keys}}
}

// NewStub builds a change or blur event.
func NewStub(kind Kind, el path.Path) Event {
	ev := Event{Kind: kind, El: el}
	if kind == Blur {
		ev.Blur = &Stub{}
	} else {
		ev.Change = &Stub{}
	}
	return ev
}

// NewInput builds an input event.
func NewInput(el path.Path, value string) Event {
	return Event{Kind: Input, El: el, Input: &Value{Value: value}}
}

// SpecialKeys lists the held modifiers in alt, ctrl, shift, meta order.
func SpecialKeys(alt, ctrl, shift, meta bool) []string {
	keys := []string{}
	if alt {
		keys = append(keys, "alt")
	}
	if ctrl {
		keys = append(keys, "ctrl")
	}
	if shift {
		keys = append(keys, "shift")
	}
	if meta {
		keys = append(keys, "meta")
	}
	return keys
}

// IsLoneMeta reports a keydown of the Meta key with no other modifier,
// which operating system shortcuts produce on their own.
func IsLoneMeta(key string, keys []string) bool {
	return key == "Meta" && len(keys) == 1 && keys[0] == "meta"
}

// Pending holds delayed input events keyed by element path. It is not safe
// for concurrent use; the owner serializes access.
type Pending struct {
	entries map[string]Event
}

// NewPending returns an empty map.
func NewPending() *Pending {
	return &Pending{entries: make(map[string]Event)}
}

// Put stores ev, replacing any pending input for the same element.
func (p *Pending) Put(ev Event) {
	p.entries[ev.El.Key()] = ev
}

// Discard drops the pending input for the element at el.
func (p *Pending) Discard(el path.Path) {
	delete(p.entries, el.Key())
}

// Len returns the number of pending inputs.
func (p *Pending) Len() int {
	return len(p.entries)
}

// Drain returns every pending input and empties the map.
func (p *Pending) Drain() []Event {
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Event, 0, len(keys))
	for _, k := range keys {
		out = append(out, p.entries[k])
	}
	p.entries = make(map[string]Event)
	return out
}
