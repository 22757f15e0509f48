package event_test

import (
	"encoding/json"
	"testing"

	"github.com/artpar/monoclient/domain/event"
	"github.com/artpar/monoclient/domain/path"
)

func TestEvent_WireShape(t *testing.T) {
	tests := []struct {
		name string
		ev   event.Event
		want string
	}{
		{
			name: "click",
			ev:   event.NewPointer(event.Click, path.Path{0, 1}, event.SpecialKeys(false, true, false, false)),
			want: `{"kind":"click","el":[0,1],"click":{"special_keys":["ctrl"]}}`,
		},
		{
			name: "dblclick without modifiers",
			ev:   event.NewPointer(event.Dblclick, path.Path{}, event.SpecialKeys(false, false, false, false)),
			want: `{"kind":"dblclick","el":[],"dblclick":{"special_keys":[]}}`,
		},
		{
			name: "keydown",
			ev:   event.NewKeydown(path.Path{2}, "Enter", event.SpecialKeys(true, false, true, true)),
			want: `{"kind":"keydown","el":[2],"keydown":{"key":"Enter","special_keys":["alt","shift","meta"]}}`,
		},
		{
			name: "change",
			ev:   event.NewStub(event.Change, path.Path{3}),
			want: `{"kind":"change","el":[3],"change":{"stub":""}}`,
		},
		{
			name: "blur",
			ev:   event.NewStub(event.Blur, path.Path{3}),
			want: `{"kind":"blur","el":[3],"blur":{"stub":""}}`,
		},
		{
			name: "input",
			ev:   event.NewInput(path.Path{4, 0}, "abc"),
			want: `{"kind":"input","el":[4,0],"input":{"value":"abc"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("json = %s\nwant   %s", data, tt.want)
			}
		})
	}
}

func TestIsLoneMeta(t *testing.T) {
	if !event.IsLoneMeta("Meta", []string{"meta"}) {
		t.Error("Meta with only meta held should be lone")
	}
	if event.IsLoneMeta("Meta", []string{"shift", "meta"}) {
		t.Error("Meta with shift is not lone")
	}
	if event.IsLoneMeta("k", []string{"meta"}) {
		t.Error("meta+k is a shortcut with a character")
	}
}

func TestPending_OverwritesByPath(t *testing.T) {
	p := event.NewPending()

	p.Put(event.NewInput(path.Path{0, 1}, "a"))
	p.Put(event.NewInput(path.Path{0, 1}, "ab"))
	p.Put(event.NewInput(path.Path{2}, "x"))

	if p.Len() != 2 {
		t.Fatalf("Len = %d, want 2", p.Len())
	}

	drained := p.Drain()
	if len(drained) != 2 {
		t.Fatalf("len(Drain) = %d, want 2", len(drained))
	}
	if drained[0].Input.Value != "ab" {
		t.Errorf("first pending value = %q, want ab", drained[0].Input.Value)
	}
	if p.Len() != 0 {
		t.Errorf("Len after Drain = %d, want 0", p.Len())
	}
	if len(p.Drain()) != 0 {
		t.Error("second Drain should be empty")
	}
}

func TestPending_Discard(t *testing.T) {
	p := event.NewPending()
	p.Put(event.NewInput(path.Path{1}, "a"))
	p.Discard(path.Path{1})
	p.Discard(path.Path{9})

	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
}
