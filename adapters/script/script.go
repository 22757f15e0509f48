// Package script evaluates trusted server-sent JavaScript against the live
// document with an embedded goja runtime.
//
// The runtime exposes a small browser surface: window, document, location
// and console. Element objects are wrappers over the live tree; property
// writes on value and checked go to the live properties, never to the
// attributes.
package script

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/ports"
	"github.com/dop251/goja"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// Evaluator runs scripts in one goja runtime bound to one document.
// Eval is called with the document lock held, which also serializes
// access to the runtime.
type Evaluator struct {
	vm     *goja.Runtime
	doc    *dom.Document
	logger zerolog.Logger

	// Wrappers are cached per script run so that the same element yields
	// the same object within one evaluation.
	objects map[*html.Node]*goja.Object
	nodes   map[*goja.Object]*html.Node
}

// New creates an evaluator for doc. pageURL populates window.location.
func New(doc *dom.Document, pageURL string, logger zerolog.Logger) (*Evaluator, error) {
	e := &Evaluator{
		vm:     goja.New(),
		doc:    doc,
		logger: logger.With().Str("component", "script").Logger(),
	}
	e.reset()

	location, err := e.newLocation(pageURL)
	if err != nil {
		return nil, err
	}

	global := e.vm.GlobalObject()
	for name, v := range map[string]any{
		"window":   global,
		"self":     global,
		"location": location,
		"document": e.newDocument(),
		"console":  e.newConsole(),
	} {
		if err := global.Set(name, v); err != nil {
			return nil, fmt.Errorf("set global %s: %w", name, err)
		}
	}

	return e, nil
}

// Eval runs code in strict mode. Declarations stay local to one run. A
// thrown exception or syntax error is returned as an error.
func (e *Evaluator) Eval(code string) error {
	e.reset()

	if _, err := e.vm.RunString("(function() { 'use strict';\n" + code + "\n})()"); err != nil {
		return fmt.Errorf("eval script: %w", err)
	}
	return nil
}

func (e *Evaluator) reset() {
	e.objects = make(map[*html.Node]*goja.Object)
	e.nodes = make(map[*goja.Object]*html.Node)
}

// Ensure interface compliance.
var _ ports.Evaluator = (*Evaluator)(nil)

func (e *Evaluator) newLocation(pageURL string) (*goja.Object, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	loc := e.vm.NewObject()
	for k, v := range map[string]string{
		"href":     u.String(),
		"protocol": u.Scheme + ":",
		"host":     u.Host,
		"hostname": u.Hostname(),
		"port":     u.Port(),
		"pathname": u.EscapedPath(),
		"search":   query(u),
		"hash":     fragment(u),
	} {
		loc.Set(k, v)
	}
	loc.Set("toString", func(goja.FunctionCall) goja.Value {
		return e.vm.ToValue(u.String())
	})
	return loc, nil
}

func query(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	return "?" + u.RawQuery
}

func fragment(u *url.URL) string {
	if u.Fragment == "" {
		return ""
	}
	return "#" + u.EscapedFragment()
}

func (e *Evaluator) newConsole() *goja.Object {
	console := e.vm.NewObject()
	for name, level := range map[string]zerolog.Level{
		"log":   zerolog.InfoLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"debug": zerolog.DebugLevel,
	} {
		console.Set(name, e.logFunc(level))
	}
	return console
}

func (e *Evaluator) logFunc(level zerolog.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = e.format(arg)
		}
		e.logger.WithLevel(level).Str("source", "console").Msg(strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// format renders strings verbatim and objects as JSON when possible.
func (e *Evaluator) format(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok || e.nodes[obj] != nil {
		return v.String()
	}
	data, err := json.Marshal(v.Export())
	if err != nil {
		return v.String()
	}
	return string(data)
}

// throw raises err as a JavaScript exception.
func (e *Evaluator) throw(err error) {
	panic(e.vm.NewGoError(err))
}

// accessor defines a getter and an optional setter on obj.
func (e *Evaluator) accessor(obj *goja.Object, name string, get func() any, set func(goja.Value)) {
	getter := e.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return e.vm.ToValue(get())
	})
	setter := goja.Undefined()
	if set != nil {
		setter = e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	if err := obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		e.logger.Error().Err(err).Str("property", name).Msg("define accessor")
	}
}
