// Package path converts between elements and their structural address
// under a UI root: the element-child indices read root to leaf.
//
// Paths are only meaningful against the tree they were computed from, so
// they are resolved again for every event and never cached.
package path

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/monoclient/domain/dom"
	"golang.org/x/net/html"
)

// RootAttr marks the root element of a UI and carries its identifier.
const RootAttr = "mono_id"

// ErrOutOfBounds means a path segment points past the children of its
// node. The client tree has diverged from the server.
var ErrOutOfBounds = errors.New("wrong path, child index is out of bounds")

// Path is an ordered sequence of child indices.
type Path []int

// Key returns the comma-joined form used to coalesce events by element.
func (p Path) Key() string {
	parts := make([]string, len(p))
	for i, pos := range p {
		parts[i] = strconv.Itoa(pos)
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the path as an array, never null.
func (p Path) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(p))
}

// Found is the result of a successful resolution.
type Found struct {
	MonoID string
	Path   Path
}

// Resolve walks from target up to its UI root.
//
// With a marker, indices are recorded only from the first element that
// carries the marker attribute upwards; until then the walk is inactive and
// a root it passes is not a stopping point. Without a marker the walk is
// active from target. The first root seen while active ends the walk.
func Resolve(target *html.Node, marker string) (Found, bool) {
	cur := target
	if cur != nil && !dom.IsElement(cur) {
		cur = dom.ParentElement(cur)
	}

	p := Path{}
	active := marker == ""
	for cur != nil {
		active = active || dom.HasAttr(cur, marker)
		if active {
			if id, ok := dom.Attr(cur, RootAttr); ok {
				return Found{MonoID: id, Path: p}, true
			}
		}

		parent := dom.ParentElement(cur)
		if parent == nil {
			break
		}
		if active {
			p = append(Path{dom.ChildIndex(parent, cur)}, p...)
		}
		cur = parent
	}
	return Found{}, false
}

// Locate descends from root following p.
func Locate(root *html.Node, p Path) (*html.Node, error) {
	el := root
	for i, pos := range p {
		children := dom.Children(el)
		if pos < 0 || pos >= len(children) {
			return nil, fmt.Errorf("%w: segment %d is %d, node has %d children", ErrOutOfBounds, i, pos, len(children))
		}
		el = children[pos]
	}
	return el, nil
}
