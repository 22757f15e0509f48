// Package protocol defines the messages exchanged with the mono server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/monoclient/domain/event"
	"github.com/artpar/monoclient/domain/patch"
)

// Message kinds.
const (
	KindEvents  = "events"
	KindPull    = "pull"
	KindIgnore  = "ignore"
	KindExpired = "expired"
	KindError   = "error"
)

// ErrUnknownEntry is returned for an events entry of an unknown kind.
var ErrUnknownEntry = errors.New("unknown events entry")

// EventsRequest delivers interaction events.
type EventsRequest struct {
	Kind   string        `json:"kind"`
	MonoID string        `json:"mono_id"`
	Events []event.Event `json:"events"`
}

// NewEventsRequest builds an events delivery.
func NewEventsRequest(monoID string, events []event.Event) EventsRequest {
	if events == nil {
		events = []event.Event{}
	}
	return EventsRequest{Kind: KindEvents, MonoID: monoID, Events: events}
}

// PullRequest asks for the next server instruction.
type PullRequest struct {
	Kind   string `json:"kind"`
	MonoID string `json:"mono_id"`
}

// NewPullRequest builds a pull.
func NewPullRequest(monoID string) PullRequest {
	return PullRequest{Kind: KindPull, MonoID: monoID}
}

// Instruction is the server's answer to a pull.
type Instruction struct {
	Kind    string  `json:"kind"`
	Events  []Entry `json:"events,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Entry is one step of an events instruction: script to evaluate, updates
// to apply, or both, in that order.
//
// Two encodings are accepted: {"eval": code, "update": update} and the
// tagged {"kind": "eval", "code": code} / {"kind": "update", "updates": [...]}.
type Entry struct {
	Eval    *string
	Updates []patch.Update
}

type rawEntry struct {
	Kind    string         `json:"kind,omitempty"`
	Eval    *string        `json:"eval,omitempty"`
	Code    *string        `json:"code,omitempty"`
	Update  *patch.Update  `json:"update,omitempty"`
	Updates []patch.Update `json:"updates,omitempty"`
}

// UnmarshalJSON decodes either entry encoding.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode entry: %w", err)
	}

	*e = Entry{}
	switch raw.Kind {
	case "":
		e.Eval = raw.Eval
		if raw.Update != nil {
			e.Updates = []patch.Update{*raw.Update}
		}
	case "eval":
		if raw.Code == nil {
			return fmt.Errorf("%w: eval without code", ErrUnknownEntry)
		}
		e.Eval = raw.Code
	case "update":
		e.Updates = raw.Updates
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEntry, raw.Kind)
	}
	return nil
}

// MarshalJSON encodes the untagged form when it can hold the entry.
func (e Entry) MarshalJSON() ([]byte, error) {
	switch {
	case len(e.Updates) <= 1:
		raw := rawEntry{Eval: e.Eval}
		if len(e.Updates) == 1 {
			raw.Update = &e.Updates[0]
		}
		return json.Marshal(raw)
	case e.Eval == nil:
		return json.Marshal(rawEntry{Kind: "update", Updates: e.Updates})
	default:
		return nil, errors.New("entry with eval and several updates has no encoding")
	}
}

// EvalEntry is a convenience for building script entries.
func EvalEntry(code string) Entry {
	return Entry{Eval: &code}
}

// UpdateEntry is a convenience for building update entries.
func UpdateEntry(updates ...patch.Update) Entry {
	return Entry{Updates: updates}
}
