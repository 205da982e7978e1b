package runtime

import (
	"errors"

	"github.com/wavmgo/wavm/internal/ir"
)

var errImmutableGlobal = errors.New("runtime: cannot set an immutable global")

// Global is a global variable object (spec.md §3 "Global", §4.F).
type Global struct {
	objectHeader

	typ ir.GlobalType
	val ir.Value
}

func (g *Global) Kind() Kind { return KindGlobal }

// Type reports the global's value type and mutability.
func (g *Global) Type() ir.GlobalType { return g.typ }

// Get reads the global's current value ("global.get").
func (g *Global) Get() ir.Value { return g.val }

// Set writes the global's value ("global.set"); it fails if the global
// was declared immutable.
func (g *Global) Set(v ir.Value) error {
	if !g.typ.Mutable {
		return errImmutableGlobal
	}
	g.val = v
	return nil
}

// NewGlobal constructs a global with its initial value ("createGlobal",
// spec.md §6.3).
func NewGlobal(c *Compartment, typ ir.GlobalType, init ir.Value) *Global {
	return &Global{objectHeader: objectHeader{compartment: c, refs: 1}, typ: typ, val: init}
}

func cloneGlobal(c *Compartment, orig *Global) *Global {
	return &Global{objectHeader: objectHeader{compartment: c, refs: 1}, typ: orig.typ, val: orig.val}
}
