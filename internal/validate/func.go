package validate

import "github.com/wavmgo/wavm/internal/ir"

// stackAny is the operand-stack entry used for every slot pushed while a
// control frame's "unreachable" flag is set (spec.md §4.D "polymorphic
// stack after unreachable code"): any.popAny() and any.pop(t) both succeed
// against it without touching height accounting past the frame's base.
const stackAny = ir.ValueType(0xff)

type controlFrame struct {
	opcode ir.Opcode
	// labelTypes are what a branch targeting this frame must leave on the
	// stack: a loop's params (branching re-enters at the top) or a
	// block/if/try's results (branching exits past the end).
	labelTypes []ir.ValueType
	endTypes   []ir.ValueType // what "end" leaves once this frame closes
	params     []ir.ValueType // an if's block-type params, re-pushed for the else arm
	height     int             // operand stack height at frame entry
	unreachable bool
	sawElse    bool
}

type funcChecker struct {
	m         *ir.Module
	funcIndex int
	locals    []ir.ValueType
	stack     []ir.ValueType
	frames    []controlFrame
	enabled   ir.Feature
}

// validateFunc type-checks the funcIdx'th module-defined function body
// against the streaming-interpreter rules of spec.md §4.D, rejecting any
// operator whose proposal isn't in enabled (SPEC_FULL.md §A.3
// RuntimeConfig.CoreFeatures).
func validateFunc(m *ir.Module, funcIdx int, enabled ir.Feature) error {
	typeIdx := m.FunctionTypeIndexes[funcIdx]
	ft := m.Types[typeIdx]
	code := m.Code[funcIdx]

	locals := append([]ir.ValueType(nil), ft.Params...)
	for _, g := range code.LocalGroups {
		for i := uint32(0); i < g.Count; i++ {
			locals = append(locals, g.Type)
		}
	}

	c := &funcChecker{m: m, funcIndex: funcIdx, locals: locals, enabled: enabled}
	c.pushFrame(ir.OpBlock, nil, ft.Results)

	for _, d := range code.Body.Ops {
		if err := c.visit(d); err != nil {
			return err
		}
	}
	if len(c.frames) != 0 {
		return invalid(funcIdx, "function body ended with unterminated control frames")
	}
	return nil
}

func (c *funcChecker) fail(format string, args ...interface{}) error {
	return invalid(c.funcIndex, format, args...)
}

func (c *funcChecker) pushFrame(op ir.Opcode, labelTypes, endTypes []ir.ValueType) {
	c.pushFrameWithParams(op, labelTypes, endTypes, nil)
}

func (c *funcChecker) pushFrameWithParams(op ir.Opcode, labelTypes, endTypes, params []ir.ValueType) {
	c.frames = append(c.frames, controlFrame{opcode: op, labelTypes: labelTypes, endTypes: endTypes, params: params, height: len(c.stack)})
}

func (c *funcChecker) top() *controlFrame { return &c.frames[len(c.frames)-1] }

func (c *funcChecker) push(t ir.ValueType) { c.stack = append(c.stack, t) }

func (c *funcChecker) pushAll(ts []ir.ValueType) {
	for _, t := range ts {
		c.push(t)
	}
}

// pop pops one value, enforcing it against want unless the current frame is
// unreachable and the stack has already been drained to its base (in which
// case the polymorphic "any" wins and no real value exists to check).
func (c *funcChecker) pop(want ir.ValueType) error {
	f := c.top()
	if len(c.stack) == f.height {
		if f.unreachable {
			return nil
		}
		return c.fail("type mismatch: expected %s, stack is empty", want)
	}
	got := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	if got != stackAny && got != want {
		return c.fail("type mismatch: expected %s, got %s", want, got)
	}
	return nil
}

func (c *funcChecker) popAny() (ir.ValueType, error) {
	f := c.top()
	if len(c.stack) == f.height {
		if f.unreachable {
			return stackAny, nil
		}
		return 0, c.fail("type mismatch: expected a value, stack is empty")
	}
	got := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return got, nil
}

func (c *funcChecker) popN(ts []ir.ValueType) error {
	for i := len(ts) - 1; i >= 0; i-- {
		if err := c.pop(ts[i]); err != nil {
			return err
		}
	}
	return nil
}

// setUnreachable marks the current frame polymorphic and discards whatever
// is left above its base height (spec.md §4.D "after unreachable, any
// sequence of pops succeeds until the matching end/else").
func (c *funcChecker) setUnreachable() {
	f := c.top()
	c.stack = c.stack[:f.height]
	f.unreachable = true
}

// labelArity returns the frame `depth` levels up (0 = innermost) and its
// label types, failing if depth escapes the function.
func (c *funcChecker) labelFrame(depth uint32) (*controlFrame, error) {
	if depth >= uint32(len(c.frames)) {
		return nil, c.fail("branch depth %d exceeds nesting", depth)
	}
	return &c.frames[len(c.frames)-1-int(depth)], nil
}

func (c *funcChecker) checkBranch(depth uint32) error {
	f, err := c.labelFrame(depth)
	if err != nil {
		return err
	}
	saved := c.stack
	ok := c.popN(f.labelTypes) == nil
	c.stack = saved
	if !ok {
		return c.fail("branch target arity/type mismatch at depth %d", depth)
	}
	return c.popN(f.labelTypes)
}

func (c *funcChecker) visit(d ir.DecodedOp) error {
	info := ir.Lookup(d.Opcode)
	if info == nil {
		return c.fail("unknown opcode")
	}
	if info.Feature&c.enabled == 0 {
		return c.fail("%s: feature %q is disabled", info.Name, info.Feature.Name())
	}

	switch d.Opcode {
	case ir.OpUnreachable:
		c.setUnreachable()
		return nil
	case ir.OpNop:
		return nil
	case ir.OpBlock, ir.OpLoop, ir.OpIf:
		if d.Opcode == ir.OpIf {
			if err := c.pop(ir.ValueTypeI32); err != nil {
				return err
			}
		}
		bt := d.BlockType.FuncType(c.m.Types)
		if err := c.popN(bt.Params); err != nil {
			return err
		}
		label := bt.Results
		if d.Opcode == ir.OpLoop {
			label = bt.Params
		}
		c.pushFrameWithParams(d.Opcode, label, bt.Results, bt.Params)
		c.pushAll(bt.Params)
		return nil
	case ir.OpTry:
		bt := d.BlockType.FuncType(c.m.Types)
		if err := c.popN(bt.Params); err != nil {
			return err
		}
		c.pushFrame(ir.OpTry, bt.Results, bt.Results)
		c.pushAll(bt.Params)
		return nil
	case ir.OpCatch:
		f := c.top()
		if f.opcode != ir.OpTry {
			return c.fail("catch outside try")
		}
		c.stack = c.stack[:f.height]
		f.unreachable = false
		if d.TagIndex >= c.m.ExceptionTypeCount() {
			return c.fail("tag index %d out of range", d.TagIndex)
		}
		ft, err := c.exceptionPayload(d.TagIndex)
		if err != nil {
			return err
		}
		c.pushAll(ft.Params)
		return nil
	case ir.OpElse:
		f := c.top()
		if f.opcode != ir.OpIf {
			return c.fail("else outside if")
		}
		if err := c.popN(f.endTypes); err != nil {
			return err
		}
		if len(c.stack) != f.height {
			return c.fail("value stack not empty at else")
		}
		f.sawElse = true
		f.unreachable = false
		c.pushAll(f.params)
		return nil
	case ir.OpEnd:
		f := c.top()
		if err := c.popN(f.endTypes); err != nil {
			return err
		}
		if len(c.stack) != f.height {
			return c.fail("value stack height mismatch at end")
		}
		if f.opcode == ir.OpIf && !f.sawElse && !sameTypes(f.labelTypes, f.endTypes) {
			return c.fail("if without else must not change the value stack type")
		}
		c.frames = c.frames[:len(c.frames)-1]
		if len(c.frames) > 0 {
			c.pushAll(f.endTypes)
		}
		return nil
	case ir.OpBr:
		if err := c.checkBranch(d.LabelIndex); err != nil {
			return err
		}
		c.setUnreachable()
		return nil
	case ir.OpBrIf:
		if err := c.pop(ir.ValueTypeI32); err != nil {
			return err
		}
		f, err := c.labelFrame(d.LabelIndex)
		if err != nil {
			return err
		}
		if err := c.popN(f.labelTypes); err != nil {
			return err
		}
		c.pushAll(f.labelTypes)
		return nil
	case ir.OpBrTable:
		if err := c.pop(ir.ValueTypeI32); err != nil {
			return err
		}
		var arity = -1
		for _, depth := range d.LabelTable {
			f, err := c.labelFrame(depth)
			if err != nil {
				return err
			}
			if arity == -1 {
				arity = len(f.labelTypes)
			} else if len(f.labelTypes) != arity {
				return c.fail("br_table targets have mismatched arities")
			}
			if err := c.checkBranch(depth); err != nil {
				return err
			}
		}
		c.setUnreachable()
		return nil
	case ir.OpReturn:
		f := &c.frames[0]
		if err := c.popN(f.endTypes); err != nil {
			return err
		}
		c.setUnreachable()
		return nil
	case ir.OpThrow:
		if d.TagIndex >= c.m.ExceptionTypeCount() {
			return c.fail("tag index %d out of range", d.TagIndex)
		}
		ft, err := c.exceptionPayload(d.TagIndex)
		if err != nil {
			return err
		}
		if err := c.popN(ft.Params); err != nil {
			return err
		}
		c.setUnreachable()
		return nil
	case ir.OpRethrow:
		f, err := c.labelFrame(d.LabelIndex)
		if err != nil {
			return err
		}
		if f.opcode != ir.OpTry {
			return c.fail("rethrow: label %d does not target a try frame", d.LabelIndex)
		}
		c.setUnreachable()
		return nil
	case ir.OpCall:
		ft, err := c.m.FuncTypeOf(d.FuncIndex)
		if err != nil {
			return c.fail("call: function index %d out of range", d.FuncIndex)
		}
		if err := c.popN(ft.Params); err != nil {
			return err
		}
		c.pushAll(ft.Results)
		return nil
	case ir.OpCallIndirect:
		if d.SecondaryIndex >= c.m.TableCount() {
			return c.fail("call_indirect: table index %d out of range", d.SecondaryIndex)
		}
		if d.TypeIndex >= uint32(len(c.m.Types)) {
			return c.fail("call_indirect: type index %d out of range", d.TypeIndex)
		}
		if err := c.pop(ir.ValueTypeI32); err != nil {
			return err
		}
		ft := c.m.Types[d.TypeIndex]
		if err := c.popN(ft.Params); err != nil {
			return err
		}
		c.pushAll(ft.Results)
		return nil
	case ir.OpDrop:
		_, err := c.popAny()
		return err
	case ir.OpSelect:
		// The legacy (no-type-immediate) select infers its type from the
		// first non-condition operand and rejects a reference type there,
		// since without an explicit type immediate there's no way to name
		// which reference type the result should carry (spec.md §4.D).
		if err := c.pop(ir.ValueTypeI32); err != nil {
			return err
		}
		a, err := c.popAny()
		if err != nil {
			return err
		}
		if a == stackAny {
			b, err := c.popAny()
			if err != nil {
				return err
			}
			if b != stackAny && b.IsReference() {
				return c.fail("select: operand type %s is a reference type; use select with an explicit type immediate", b)
			}
			if b == stackAny {
				c.push(stackAny)
				return nil
			}
			c.push(b)
			return nil
		}
		if a.IsReference() {
			return c.fail("select: operand type %s is a reference type; use select with an explicit type immediate", a)
		}
		if err := c.pop(a); err != nil {
			return err
		}
		c.push(a)
		return nil
	case ir.OpSelectT:
		if len(d.SelectTypes) != 1 {
			return c.fail("select: exactly one explicit type is supported")
		}
		if err := c.pop(ir.ValueTypeI32); err != nil {
			return err
		}
		if err := c.pop(d.SelectTypes[0]); err != nil {
			return err
		}
		if err := c.pop(d.SelectTypes[0]); err != nil {
			return err
		}
		c.push(d.SelectTypes[0])
		return nil
	case ir.OpLocalGet:
		t, err := c.localType(d.LocalIndex)
		if err != nil {
			return err
		}
		c.push(t)
		return nil
	case ir.OpLocalSet:
		t, err := c.localType(d.LocalIndex)
		if err != nil {
			return err
		}
		return c.pop(t)
	case ir.OpLocalTee:
		t, err := c.localType(d.LocalIndex)
		if err != nil {
			return err
		}
		if err := c.pop(t); err != nil {
			return err
		}
		c.push(t)
		return nil
	case ir.OpGlobalGet:
		gt, err := c.globalType(d.GlobalIndex)
		if err != nil {
			return err
		}
		c.push(gt.ValueType)
		return nil
	case ir.OpGlobalSet:
		gt, err := c.globalType(d.GlobalIndex)
		if err != nil {
			return err
		}
		if !gt.Mutable {
			return c.fail("global.set: global %d is immutable", d.GlobalIndex)
		}
		return c.pop(gt.ValueType)
	case ir.OpTableGet:
		tt, err := c.tableType(d.TableIndex)
		if err != nil {
			return err
		}
		if err := c.pop(ir.ValueTypeI32); err != nil {
			return err
		}
		c.push(tt.ElemType)
		return nil
	case ir.OpTableSet:
		tt, err := c.tableType(d.TableIndex)
		if err != nil {
			return err
		}
		if err := c.pop(tt.ElemType); err != nil {
			return err
		}
		return c.pop(ir.ValueTypeI32)
	case ir.OpRefNull:
		c.push(d.RefNullType)
		return nil
	case ir.OpRefIsNull:
		if _, err := c.popAny(); err != nil { // accepts either reference kind
			return err
		}
		c.push(ir.ValueTypeI32)
		return nil
	case ir.OpRefFunc:
		if d.FuncIndex >= c.m.FunctionCount() {
			return c.fail("ref.func: function index %d out of range", d.FuncIndex)
		}
		c.push(ir.ValueTypeFuncRef)
		return nil
	case ir.OpMemorySize, ir.OpMemoryGrow:
		if c.m.MemoryCount() == 0 {
			return c.fail("memory instruction without a memory")
		}
	}

	if info.Imm == ir.ImmMemArg {
		if c.m.MemoryCount() == 0 {
			return c.fail("memory instruction without a memory")
		}
		natural := ir.NaturalAlignmentLog2(d.Opcode)
		if d.Opcode.Prefix() == ir.PrefixAtomic {
			// An atomic access must be aligned to exactly its natural
			// alignment, not merely no coarser than it (spec.md §4.D):
			// the hardware instructions these lower to require it.
			if d.MemArgAlign != natural {
				return c.fail("atomic alignment %d must equal natural alignment %d", d.MemArgAlign, natural)
			}
		} else if d.MemArgAlign > natural {
			return c.fail("alignment %d exceeds natural alignment", d.MemArgAlign)
		}
	}

	switch info.Imm {
	case ir.ImmMemoryInit:
		if d.FuncIndex >= c.dataCount() {
			return c.fail("memory.init: data segment %d out of range", d.FuncIndex)
		}
	case ir.ImmDataIndex:
		if d.FuncIndex >= c.dataCount() {
			return c.fail("data.drop: data segment %d out of range", d.FuncIndex)
		}
	case ir.ImmElemIndex:
		if d.FuncIndex >= uint32(len(c.m.Elements)) {
			return c.fail("elem.drop: element segment %d out of range", d.FuncIndex)
		}
	case ir.ImmTableInit:
		if d.FuncIndex >= uint32(len(c.m.Elements)) {
			return c.fail("table.init: element segment %d out of range", d.FuncIndex)
		}
		if d.TableIndex >= c.m.TableCount() {
			return c.fail("table.init: table index %d out of range", d.TableIndex)
		}
	}

	if err := c.popN(info.Signature.Params); err != nil {
		return err
	}
	c.pushAll(info.Signature.Results)
	return nil
}

func (c *funcChecker) localType(idx uint32) (ir.ValueType, error) {
	if idx >= uint32(len(c.locals)) {
		return 0, c.fail("local index %d out of range", idx)
	}
	return c.locals[idx], nil
}

func (c *funcChecker) globalType(idx uint32) (ir.GlobalType, error) {
	if idx >= c.m.GlobalCount() {
		return ir.GlobalType{}, c.fail("global index %d out of range", idx)
	}
	if idx < c.m.ImportGlobalCount() {
		return resolveImportedGlobalType(c.m, idx), nil
	}
	return c.m.Globals[idx-c.m.ImportGlobalCount()].Type, nil
}

func (c *funcChecker) tableType(idx uint32) (ir.TableType, error) {
	if idx >= c.m.TableCount() {
		return ir.TableType{}, c.fail("table index %d out of range", idx)
	}
	if idx < c.m.ImportTableCount() {
		n := uint32(0)
		for _, imp := range c.m.Imports {
			if imp.Type.Kind == ir.ExternKindTable {
				if n == idx {
					return imp.Type.Table, nil
				}
				n++
			}
		}
	}
	return c.m.Tables[idx-c.m.ImportTableCount()], nil
}

func (c *funcChecker) exceptionPayload(idx uint32) (*ir.FuncType, error) {
	if idx < c.m.ImportExceptionTypeCount() {
		n := uint32(0)
		for _, imp := range c.m.Imports {
			if imp.Type.Kind == ir.ExternKindExceptionType {
				if n == idx {
					return imp.Type.ExceptionType, nil
				}
				n++
			}
		}
	}
	local := idx - c.m.ImportExceptionTypeCount()
	if local >= uint32(len(c.m.ExceptionTypes)) {
		return nil, c.fail("tag index %d out of range", idx)
	}
	return c.m.Types[c.m.ExceptionTypes[local]], nil
}

func (c *funcChecker) dataCount() uint32 {
	if c.m.HasDataCount {
		return c.m.DataCount
	}
	return uint32(len(c.m.Data))
}

func sameTypes(a, b []ir.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
