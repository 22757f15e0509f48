// Package indicator shows the connection state as the opacity of the
// document body.
package indicator

import (
	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/ports"
)

// Opacity levels of the body per connection state.
const (
	NormalOpacity   = "1.0"
	DegradedOpacity = "0.7"
	ExpiredOpacity  = "0.3"
)

// Opacity sets body opacity on the live document.
type Opacity struct {
	doc *dom.Document
}

// NewOpacity creates an indicator for doc.
func NewOpacity(doc *dom.Document) *Opacity {
	return &Opacity{doc: doc}
}

func (o *Opacity) Normal()   { o.set(NormalOpacity) }
func (o *Opacity) Degraded() { o.set(DegradedOpacity) }
func (o *Opacity) Expired()  { o.set(ExpiredOpacity) }

func (o *Opacity) set(v string) {
	o.doc.Do(func() {
		dom.SetStyle(o.doc.Body(), "opacity", v)
	})
}

// Ensure interface compliance.
var _ ports.Indicator = (*Opacity)(nil)

// Nop ignores state changes.
type Nop struct{}

func (Nop) Normal()   {}
func (Nop) Degraded() {}
func (Nop) Expired()  {}

var _ ports.Indicator = Nop{}
