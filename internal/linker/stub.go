package linker

import (
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
	"github.com/wavmgo/wavm/internal/trap"
)

// StubMode selects what a StubResolver's synthesized function does when
// called (spec.md §4.G: "a stub function that either returns zeroes or
// traps with calledUnimplementedIntrinsic").
type StubMode int

const (
	// StubTrap makes every synthesized function trap when called. This
	// is the mode spec.md §7 seed test 6 exercises.
	StubTrap StubMode = iota
	// StubZero makes every synthesized function return zero/null results
	// instead of trapping, for hosts that would rather degrade silently.
	StubZero
)

// StubResolver wraps a fallback Resolver and synthesizes a runtime object
// for every import the fallback does not resolve, so instantiation always
// succeeds even against an incomplete host (spec.md §4.G).
type StubResolver struct {
	Fallback    Resolver
	Compartment *runtime.Compartment
	Mode        StubMode
}

func (s *StubResolver) Resolve(moduleName, name string, expected ir.ExternType) (runtime.Object, bool) {
	if s.Fallback != nil {
		if o, ok := s.Fallback.Resolve(moduleName, name, expected); ok {
			return o, ok
		}
	}
	return s.synthesize(expected), true
}

func (s *StubResolver) synthesize(expected ir.ExternType) runtime.Object {
	c := s.Compartment
	switch expected.Kind {
	case ir.ExternKindFunc:
		return runtime.NewHostFunction(c, expected.Func, s.stubBody(expected.Func))
	case ir.ExternKindTable:
		lim := expected.Table.Limits
		return runtime.NewTable(c, expected.Table.ElemType, lim.Min, lim.Max, lim.HasMax)
	case ir.ExternKindMemory:
		lim := expected.Mem.Limits
		m, err := runtime.NewMemory(c, lim.Min, lim.Max, lim.HasMax, expected.Mem.Shared)
		if err != nil {
			// The caller declared these limits as satisfiable by
			// construction (they come from its own module); a stub
			// failing to reserve the identical shape is a host
			// allocation failure, not a resolvable condition.
			panic(err)
		}
		return m
	case ir.ExternKindGlobal:
		return runtime.NewGlobal(c, expected.Global, zeroValue(expected.Global.ValueType))
	case ir.ExternKindExceptionType:
		return runtime.NewExceptionType(c, expected.ExceptionType)
	default:
		return nil
	}
}

// stubBody returns the HostFunc a synthesized function calls into.
func (s *StubResolver) stubBody(typ *ir.FuncType) runtime.HostFunc {
	if s.Mode == StubTrap {
		return func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error) {
			return nil, trap.ErrCalledUnimplemented
		}
	}
	results := make([]ir.Value, len(typ.Results))
	for i, rt := range typ.Results {
		results[i] = zeroValue(rt)
	}
	return func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error) {
		out := make([]ir.Value, len(results))
		copy(out, results)
		return out, nil
	}
}

func zeroValue(vt ir.ValueType) ir.Value {
	switch vt {
	case ir.ValueTypeI32:
		return ir.I32(0)
	case ir.ValueTypeI64:
		return ir.I64(0)
	case ir.ValueTypeF32:
		return ir.F32Bits(0)
	case ir.ValueTypeF64:
		return ir.F64Bits(0)
	case ir.ValueTypeV128:
		return ir.V128(0, 0)
	case ir.ValueTypeFuncRef, ir.ValueTypeExternRef:
		return ir.NullRef(vt)
	default:
		return ir.Value{}
	}
}
