// Package patch applies server updates to the live tree.
//
// One update addresses one element by path and may carry every edit kind.
// Edits run in a fixed order: replace, set attributes, delete attributes,
// set children, delete children. After a replace, the remaining edits
// address the replacement.
package patch

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/domain/node"
	"github.com/artpar/monoclient/domain/path"
	"golang.org/x/net/html"
)

var (
	// ErrStructuralAttr is returned when an attribute edit names children.
	ErrStructuralAttr = errors.New("children can't be edited as an attribute")

	// ErrChildGap is returned when set_children would leave a gap.
	ErrChildGap = errors.New("set_children can't have gaps in children positions")

	// ErrChildOutOfBounds is returned when del_children names a missing child.
	ErrChildOutOfBounds = errors.New("del_children index out of bounds")
)

// Update is one structural edit addressed by path.
type Update struct {
	El          path.Path             `json:"el"`
	Set         *node.Node            `json:"set,omitempty"`
	SetAttrs    map[string]node.Value `json:"set_attrs,omitempty"`
	DelAttrs    []string              `json:"del_attrs,omitempty"`
	SetChildren map[int]node.Node     `json:"set_children,omitempty"`
	DelChildren []int                 `json:"del_children,omitempty"`
}

type attrKind int

const (
	attrPlain attrKind = iota
	attrText
	attrBoolProp
	attrValueProp
	attrStructural
)

// attrPolicy maps edit keys to their semantics. Keys not listed are plain
// HTML attributes. Properties are assigned on the live element because
// they stop following their attribute after user interaction.
var attrPolicy = map[string]attrKind{
	"text":     attrText,
	"checked":  attrBoolProp,
	"value":    attrValueProp,
	"children": attrStructural,
}

// Apply performs u against the tree under root.
func Apply(doc *dom.Document, root *html.Node, u Update) error {
	el, err := path.Locate(root, u.El)
	if err != nil {
		return fmt.Errorf("locate %v: %w", u.El, err)
	}

	if u.Set != nil {
		repl, err := node.Build(*u.Set)
		if err != nil {
			return fmt.Errorf("build set: %w", err)
		}
		if err := doc.ReplaceWith(el, repl); err != nil {
			return fmt.Errorf("replace %v: %w", u.El, err)
		}
		el = repl
	}

	if err := setAttrs(doc, el, u.SetAttrs); err != nil {
		return err
	}
	if err := delAttrs(doc, el, u.DelAttrs); err != nil {
		return err
	}
	if err := setChildren(doc, el, u.SetChildren); err != nil {
		return err
	}
	return delChildren(doc, el, u.DelChildren)
}

func setAttrs(doc *dom.Document, el *html.Node, attrs map[string]node.Value) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := attrs[k]
		switch attrPolicy[k] {
		case attrStructural:
			return fmt.Errorf("set_attrs: %w", ErrStructuralAttr)
		case attrText:
			dom.SetText(el, string(v))
		case attrBoolProp:
			doc.SetChecked(el, v.Truthy())
		case attrValueProp:
			doc.SetValue(el, string(v))
		default:
			dom.SetAttr(el, k, string(v))
		}
	}
	return nil
}

func delAttrs(doc *dom.Document, el *html.Node, keys []string) error {
	for _, k := range keys {
		switch attrPolicy[k] {
		case attrStructural:
			return fmt.Errorf("del_attrs: %w", ErrStructuralAttr)
		case attrText:
			dom.SetText(el, "")
		case attrBoolProp:
			doc.SetChecked(el, false)
		default:
			dom.RemoveAttr(el, k)
		}
	}
	return nil
}

// setChildren applies positions in ascending order so that an append at
// the current end can be followed by an append at the next position.
func setChildren(doc *dom.Document, el *html.Node, children map[int]node.Node) error {
	if len(children) == 0 {
		return nil
	}

	positions := make([]int, 0, len(children))
	built := make(map[int]*html.Node, len(children))
	for pos, desc := range children {
		c, err := node.Build(desc)
		if err != nil {
			return fmt.Errorf("build child %d: %w", pos, err)
		}
		positions = append(positions, pos)
		built[pos] = c
	}
	slices.Sort(positions)

	for _, pos := range positions {
		current := dom.Children(el)
		switch {
		case pos >= 0 && pos < len(current):
			if err := doc.ReplaceWith(current[pos], built[pos]); err != nil {
				return fmt.Errorf("replace child %d: %w", pos, err)
			}
		case pos == len(current):
			dom.AppendChild(el, built[pos])
		default:
			return fmt.Errorf("%w: position %d with %d children", ErrChildGap, pos, len(current))
		}
	}
	return nil
}

// delChildren removes from the highest position down, so each removal
// leaves the lower positions still pending untouched.
func delChildren(doc *dom.Document, el *html.Node, positions []int) error {
	if len(positions) == 0 {
		return nil
	}

	sorted := slices.Clone(positions)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	slices.Reverse(sorted)

	for _, pos := range sorted {
		current := dom.Children(el)
		if pos < 0 || pos >= len(current) {
			return fmt.Errorf("%w: position %d with %d children", ErrChildOutOfBounds, pos, len(current))
		}
		if err := doc.Remove(current[pos]); err != nil {
			return fmt.Errorf("remove child %d: %w", pos, err)
		}
	}
	return nil
}
