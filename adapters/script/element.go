package script

import (
	"strings"

	"github.com/artpar/monoclient/domain/dom"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

func (e *Evaluator) defineElement(obj *goja.Object, n *html.Node) {
	obj.Set("tagName", strings.ToUpper(n.Data))
	obj.Set("nodeName", strings.ToUpper(n.Data))

	e.accessor(obj, "id", e.attrGetter(n, "id"), e.attrSetter(n, "id"))
	e.accessor(obj, "className", e.attrGetter(n, "class"), e.attrSetter(n, "class"))
	e.accessor(obj, "textContent",
		func() any { return dom.TextContent(n) },
		func(v goja.Value) { dom.SetText(n, v.String()) },
	)
	e.accessor(obj, "value",
		func() any { return e.doc.Value(n) },
		func(v goja.Value) { e.doc.SetValue(n, v.String()) },
	)
	e.accessor(obj, "checked",
		func() any { return e.doc.Checked(n) },
		func(v goja.Value) { e.doc.SetChecked(n, v.ToBoolean()) },
	)
	e.accessor(obj, "parentElement", func() any { return e.wrap(dom.ParentElement(n)) }, nil)
	e.accessor(obj, "children", func() any { return e.wrapAll(dom.Children(n)) }, nil)
	e.accessor(obj, "style", func() any { return e.newStyle(n) }, nil)

	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := dom.Attr(n, call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return e.vm.ToValue(v)
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		dom.SetAttr(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		dom.RemoveAttr(n, call.Argument(0).String())
		return goja.Undefined()
	})
	obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		return e.vm.ToValue(dom.HasAttr(n, call.Argument(0).String()))
	})

	obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return e.wrap(e.queryOne(n, "."+e.selector(call.Argument(0).String())))
	})
	obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return e.wrapAll(e.queryAll(n, "."+e.selector(call.Argument(0).String())))
	})

	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := e.unwrap(call.Argument(0))
		if dom.Contains(child, n) {
			e.throw(ErrHierarchy)
		}
		dom.AppendChild(n, child)
		return call.Argument(0)
	})
	obj.Set("remove", func(goja.FunctionCall) goja.Value {
		if n.Parent != nil {
			e.doc.Remove(n)
		}
		return goja.Undefined()
	})
	obj.Set("focus", func(goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
	obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return e.vm.ToValue("[object HTML" + strings.ToUpper(n.Data) + "Element]")
	})
}

func (e *Evaluator) attrGetter(n *html.Node, key string) func() any {
	return func() any {
		v, _ := dom.Attr(n, key)
		return v
	}
}

func (e *Evaluator) attrSetter(n *html.Node, key string) func(goja.Value) {
	return func(v goja.Value) {
		dom.SetAttr(n, key, v.String())
	}
}

// newStyle exposes the inline style attribute through setProperty,
// getPropertyValue and the opacity shorthand.
func (e *Evaluator) newStyle(n *html.Node) *goja.Object {
	style := e.vm.NewObject()
	style.Set("setProperty", func(call goja.FunctionCall) goja.Value {
		dom.SetStyle(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	style.Set("getPropertyValue", func(call goja.FunctionCall) goja.Value {
		return e.vm.ToValue(dom.Style(n, call.Argument(0).String()))
	})
	e.accessor(style, "opacity",
		func() any { return dom.Style(n, "opacity") },
		func(v goja.Value) { dom.SetStyle(n, "opacity", v.String()) },
	)
	e.accessor(style, "display",
		func() any { return dom.Style(n, "display") },
		func(v goja.Value) { dom.SetStyle(n, "display", v.String()) },
	)
	return style
}
