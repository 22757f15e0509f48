package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// ErrNotElement is thrown when a script passes something other than an
// element wrapper where an element is expected.
var ErrNotElement = errors.New("argument is not an element")

// ErrHierarchy is thrown when appending an element to its own descendant.
var ErrHierarchy = errors.New("new child contains the parent")

func (e *Evaluator) newDocument() *goja.Object {
	d := e.vm.NewObject()

	e.accessor(d, "body", func() any { return e.wrap(e.doc.Body()) }, nil)
	e.accessor(d, "documentElement", func() any {
		return e.wrap(htmlquery.FindOne(e.doc.Root(), "/html"))
	}, nil)
	e.accessor(d, "title", e.title, e.setTitle)

	d.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		expr := "//*[@id=" + literal(call.Argument(0).String()) + "]"
		return e.wrap(e.queryOne(e.doc.Root(), expr))
	})
	d.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return e.wrap(e.queryOne(e.doc.Root(), e.selector(call.Argument(0).String())))
	})
	d.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return e.wrapAll(e.queryAll(e.doc.Root(), e.selector(call.Argument(0).String())))
	})
	d.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return e.wrap(dom.NewElement(call.Argument(0).String()))
	})

	return d
}

func (e *Evaluator) title() any {
	if t := htmlquery.FindOne(e.doc.Root(), "//title"); t != nil {
		return strings.TrimSpace(dom.TextContent(t))
	}
	return ""
}

func (e *Evaluator) setTitle(v goja.Value) {
	t := htmlquery.FindOne(e.doc.Root(), "//title")
	if t == nil {
		head := htmlquery.FindOne(e.doc.Root(), "//head")
		if head == nil {
			return
		}
		t = dom.NewElement("title")
		dom.AppendChild(head, t)
	}
	dom.SetText(t, v.String())
}

// selector translates a CSS selector or throws.
func (e *Evaluator) selector(css string) string {
	expr, err := selectorToXPath(css)
	if err != nil {
		e.throw(err)
	}
	return expr
}

func (e *Evaluator) queryOne(top *html.Node, expr string) *html.Node {
	n, err := htmlquery.Query(top, expr)
	if err != nil {
		e.throw(fmt.Errorf("query %q: %w", expr, err))
	}
	return n
}

func (e *Evaluator) queryAll(top *html.Node, expr string) []*html.Node {
	nodes, err := htmlquery.QueryAll(top, expr)
	if err != nil {
		e.throw(fmt.Errorf("query %q: %w", expr, err))
	}
	return nodes
}

// wrap returns the script object of an element, or null.
func (e *Evaluator) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := e.objects[n]; ok {
		return obj
	}

	obj := e.vm.NewObject()
	e.objects[n] = obj
	e.nodes[obj] = n
	e.defineElement(obj, n)
	return obj
}

func (e *Evaluator) wrapAll(nodes []*html.Node) goja.Value {
	values := make([]any, 0, len(nodes))
	for _, n := range nodes {
		values = append(values, e.wrap(n))
	}
	return e.vm.NewArray(values...)
}

// unwrap returns the element behind a script object or throws.
func (e *Evaluator) unwrap(v goja.Value) *html.Node {
	obj, ok := v.(*goja.Object)
	if ok {
		if n := e.nodes[obj]; n != nil {
			return n
		}
	}
	e.throw(ErrNotElement)
	return nil
}
