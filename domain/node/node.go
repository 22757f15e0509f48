// Package node decodes server node descriptions and builds element
// subtrees from them.
//
// A description is a flat JSON object: "tag" names the element (div when
// absent), "text" or "children" gives its content, and every other key is
// an attribute. Attribute values are stringified whatever their JSON type.
package node

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/artpar/monoclient/domain/dom"
	"golang.org/x/net/html"
)

// DefaultTag is used when a description has no tag.
const DefaultTag = "div"

var (
	// ErrTextAndChildren is returned for a description carrying both text and children.
	ErrTextAndChildren = errors.New("node can't have both text and children")

	// ErrChildrenNotArray is returned when children is not a JSON array.
	ErrChildrenNotArray = errors.New("node children should be an array")
)

// Node describes an element to construct.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     *string
	Children []Node
}

// Value is a JSON scalar in its stringified form.
type Value string

// UnmarshalJSON accepts any JSON value and keeps its string form.
func (v *Value) UnmarshalJSON(data []byte) error {
	s, err := Stringify(data)
	if err != nil {
		return err
	}
	*v = Value(s)
	return nil
}

// Truthy reports whether the stringified value counts as true when
// assigned to a boolean property.
func (v Value) Truthy() bool {
	switch v {
	case "", "false", "0", "null":
		return false
	}
	return true
}

// Stringify returns the string form of a raw JSON value: strings verbatim,
// anything else as its JSON text.
func Stringify(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", fmt.Errorf("decode string: %w", err)
		}
		return s, nil
	}
	return string(data), nil
}

// UnmarshalJSON decodes the flat description form.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode node: %w", err)
	}

	*n = Node{}
	for k, v := range raw {
		switch k {
		case "tag":
			tag, err := Stringify(v)
			if err != nil {
				return err
			}
			n.Tag = tag
		case "text":
			text, err := Stringify(v)
			if err != nil {
				return err
			}
			n.Text = &text
		case "children":
			v = bytes.TrimSpace(v)
			if len(v) == 0 || v[0] != '[' {
				return ErrChildrenNotArray
			}
			children := []Node{}
			if err := json.Unmarshal(v, &children); err != nil {
				return err
			}
			n.Children = children
		default:
			val, err := Stringify(v)
			if err != nil {
				return err
			}
			if n.Attrs == nil {
				n.Attrs = make(map[string]string)
			}
			n.Attrs[k] = val
		}
	}
	return nil
}

// MarshalJSON encodes the flat description form.
func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Attrs)+2)
	for k, v := range n.Attrs {
		out[k] = v
	}
	if n.Tag != "" {
		out["tag"] = n.Tag
	}
	if n.Text != nil {
		out["text"] = *n.Text
	}
	if n.Children != nil {
		out["children"] = n.Children
	}
	return json.Marshal(out)
}

// Build constructs a detached element subtree.
func Build(n Node) (*html.Node, error) {
	if n.Text != nil && n.Children != nil {
		return nil, ErrTextAndChildren
	}

	tag := n.Tag
	if tag == "" {
		tag = DefaultTag
	}
	el := dom.NewElement(tag)

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		dom.SetAttr(el, k, n.Attrs[k])
	}

	if n.Text != nil {
		dom.SetText(el, *n.Text)
		return el, nil
	}
	for i, child := range n.Children {
		c, err := Build(child)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		dom.AppendChild(el, c)
	}
	return el, nil
}

// Text is a convenience for building descriptions in code.
func Text(tag, text string) Node {
	return Node{Tag: tag, Text: &text}
}
