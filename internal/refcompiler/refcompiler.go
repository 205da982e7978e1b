// Package refcompiler implements spec.md §6.2's producer contract with a
// small, deliberately restricted x86-64 reference code generator: identity,
// arithmetic, branch, and call over i32/i64/f32/f64. It exists only so the
// conformance tests in §8 can drive a real machine-code callee through
// internal/boundary, internal/trap, and internal/linker end to end; the
// production code path for this module is the interpreter in internal/interp
// (see SPEC_FULL.md §6.2 — a full optimizing/baseline JIT is explicitly out
// of scope).
//
// The teacher reserves the same kind of narrow role for golang-asm: arm64
// uses it directly (internal/asm/arm64/golang_asm.go) while amd64 carries a
// hand-rolled encoder instead; this package follows the arm64 route for
// x86-64, wrapping the same github.com/twitchyliquid64/golang-asm Builder
// the teacher's internal/asm/golang_asm package wraps, rather than
// hand-encoding opcodes.
package refcompiler

import (
	"fmt"
	"math"
	"syscall"
	"unsafe"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// ValType is one of the four numeric types spec.md §6.2 names.
type ValType int

const (
	I32 ValType = iota
	I64
	F32
	F64
)

func (t ValType) isFloat() bool { return t == F32 || t == F64 }

// Op enumerates the restricted instruction subset: identity (Local),
// arithmetic (Add/Sub/Mul), compare-and-branch (IfElse), and Call.
type Op int

const (
	OpConst Op = iota
	OpLocal
	OpAdd
	OpSub
	OpMul
	// OpIfElse evaluates Then if the accumulator built so far compares
	// non-zero against zero, Else otherwise; it is the reference
	// implementation's whole branch repertoire (spec.md §6.2 "branch").
	OpIfElse
	// OpCall invokes a previously compiled Callee with the current
	// operand list as arguments.
	OpCall
)

// Instr is one node of a Program's expression tree. A nil A/B means the
// instruction is a leaf (Const or Local).
type Instr struct {
	Op   Op
	Type ValType

	// OpConst
	IntImm   int64
	FloatImm float64

	// OpLocal
	LocalIndex int

	// OpAdd/OpSub/OpMul/OpIfElse condition
	A, B *Instr

	// OpIfElse
	Then, Else *Instr

	// OpCall
	Callee *CompiledFunc
	Args   []*Instr
}

// Const builds an integer or float constant leaf.
func ConstInt(t ValType, v int64) *Instr   { return &Instr{Op: OpConst, Type: t, IntImm: v} }
func ConstFloat(t ValType, v float64) *Instr { return &Instr{Op: OpConst, Type: t, FloatImm: v} }

// Local reads parameter index i.
func Local(t ValType, i int) *Instr { return &Instr{Op: OpLocal, Type: t, LocalIndex: i} }

// Add/Sub/Mul build a binary arithmetic node; a and b must share a's type.
func Add(a, b *Instr) *Instr { return &Instr{Op: OpAdd, Type: a.Type, A: a, B: b} }
func Sub(a, b *Instr) *Instr { return &Instr{Op: OpSub, Type: a.Type, A: a, B: b} }
func Mul(a, b *Instr) *Instr { return &Instr{Op: OpMul, Type: a.Type, A: a, B: b} }

// IfElse selects then or els depending on whether cond is non-zero.
func IfElse(cond, then, els *Instr) *Instr {
	return &Instr{Op: OpIfElse, Type: then.Type, A: cond, Then: then, Else: els}
}

// Call invokes callee with args, whose types must match callee's params.
func Call(callee *CompiledFunc, args ...*Instr) *Instr {
	return &Instr{Op: OpCall, Type: callee.resultType, Callee: callee, Args: args}
}

// Program is one function body: a parameter list and a single expression
// tree producing the result.
type Program struct {
	Params []ValType
	Result ValType
	Body   *Instr
}

// maxIntParams/maxFloatParams bound this reference compiler's calling
// convention to the registers the System V AMD64 ABI assigns to integer
// and SSE arguments respectively; Compile rejects programs needing more.
const (
	maxIntParams   = 4
	maxFloatParams = 2
)

var intParamRegs = [maxIntParams]int16{x86.REG_DI, x86.REG_SI, x86.REG_DX, x86.REG_CX}
var floatParamRegs = [maxFloatParams]int16{x86.REG_X0, x86.REG_X1}

// scratch registers used by the expression compiler; AX doubles as the
// integer accumulator/return register, X0 as the float accumulator/return
// register, per the System V ABI's own integer/SSE return registers.
const (
	regAcc  = x86.REG_AX
	regTmp  = x86.REG_R11
	regFAcc = x86.REG_X0
	regFTmp = x86.REG_X1
)

// CompiledFunc is one assembled, executable reference function.
type CompiledFunc struct {
	code        []byte // backs entry; kept alive so the mmap region isn't collected
	entry       uintptr
	paramTypes  []ValType
	resultType  ValType
}

// Compile assembles p into native x86-64 machine code and maps it
// executable, returning a CompiledFunc ready for Call.
func Compile(p *Program) (*CompiledFunc, error) {
	nInt, nFloat := 0, 0
	for _, t := range p.Params {
		if t.isFloat() {
			nFloat++
		} else {
			nInt++
		}
	}
	if nInt > maxIntParams || nFloat > maxFloatParams {
		return nil, fmt.Errorf("refcompiler: program needs %d int / %d float params, reference compiler supports at most %d/%d", nInt, nFloat, maxIntParams, maxFloatParams)
	}

	b, err := goasm.NewBuilder("amd64", 64)
	if err != nil {
		return nil, fmt.Errorf("refcompiler: new builder: %w", err)
	}
	c := &compiler{b: b, params: p.Params}
	if err := c.emitParamSpill(); err != nil {
		return nil, err
	}
	resultReg, err := c.emitExpr(p.Body)
	if err != nil {
		return nil, err
	}
	c.emitMoveToReturn(resultReg, p.Result)
	c.emitRet()

	code := b.Assemble()
	entry, mapped, err := mapExecutable(code)
	if err != nil {
		return nil, err
	}
	return &CompiledFunc{code: mapped, entry: entry, paramTypes: p.Params, resultType: p.Result}, nil
}

// compiler holds golang-asm codegen state for one Program.
type compiler struct {
	b      *goasm.Builder
	params []ValType

	// spill slots: each parameter is moved from its ABI register into a
	// dedicated register-pair slot up front, since OpLocal may be
	// referenced more than once inside a single expression tree and the
	// ABI argument registers double as scratch for arithmetic.
	intSlots   []int16
	floatSlots []int16
}

func (c *compiler) emitParamSpill() error {
	intIdx, floatIdx := 0, 0
	for _, t := range c.params {
		if t.isFloat() {
			if floatIdx >= len(floatParamRegs) {
				return fmt.Errorf("refcompiler: too many float params")
			}
			c.floatSlots = append(c.floatSlots, floatParamRegs[floatIdx])
			floatIdx++
		} else {
			if intIdx >= len(intParamRegs) {
				return fmt.Errorf("refcompiler: too many int params")
			}
			c.intSlots = append(c.intSlots, intParamRegs[intIdx])
			intIdx++
		}
	}
	return nil
}

// emitExpr compiles e, leaving its value in regAcc (integer types) or
// regFAcc (float types), and returns which.
func (c *compiler) emitExpr(e *Instr) (int16, error) {
	switch e.Op {
	case OpConst:
		if e.Type.isFloat() {
			c.loadFloatConst(e.FloatImm, regFAcc)
			return regFAcc, nil
		}
		c.loadIntConst(e.IntImm, regAcc)
		return regAcc, nil

	case OpLocal:
		if e.Type.isFloat() {
			src := c.floatSlots[e.LocalIndex]
			c.movFloat(src, regFAcc, e.Type)
			return regFAcc, nil
		}
		src := c.intSlots[e.LocalIndex]
		c.movInt(src, regAcc, e.Type)
		return regAcc, nil

	case OpAdd, OpSub, OpMul:
		return c.emitBinary(e)

	case OpIfElse:
		return c.emitIfElse(e)

	case OpCall:
		return c.emitCall(e)

	default:
		return 0, fmt.Errorf("refcompiler: unknown op %d", e.Op)
	}
}

func (c *compiler) emitBinary(e *Instr) (int16, error) {
	if e.Type.isFloat() {
		if _, err := c.emitExpr(e.A); err != nil {
			return 0, err
		}
		c.pushFloat(regFAcc)
		if _, err := c.emitExpr(e.B); err != nil {
			return 0, err
		}
		c.movFloatReg(regFAcc, regFTmp)
		c.popFloat(regFAcc)
		c.binFloatOp(e.Op, e.Type, regFAcc, regFTmp)
		return regFAcc, nil
	}

	if _, err := c.emitExpr(e.A); err != nil {
		return 0, err
	}
	c.pushInt(regAcc)
	if _, err := c.emitExpr(e.B); err != nil {
		return 0, err
	}
	c.movIntReg(regAcc, regTmp, e.Type)
	c.popInt(regAcc)
	c.binIntOp(e.Op, e.Type, regAcc, regTmp)
	return regAcc, nil
}

func (c *compiler) emitIfElse(e *Instr) (int16, error) {
	if _, err := c.emitExpr(e.A); err != nil {
		return 0, err
	}
	// Integer-only condition, per spec.md §6.2: the branch opcode tests
	// an i32/i64 accumulator against zero.
	testZero := c.b.NewProg()
	testZero.As = x86.ACMPQ
	testZero.From.Type = obj.TYPE_REG
	testZero.From.Reg = regAcc
	testZero.To.Type = obj.TYPE_CONST
	testZero.To.Offset = 0
	c.b.AddInstruction(testZero)

	jumpToElse := c.b.NewProg()
	jumpToElse.As = x86.AJEQ
	jumpToElse.To.Type = obj.TYPE_BRANCH
	c.b.AddInstruction(jumpToElse)

	resultReg, err := c.emitExpr(e.Then)
	if err != nil {
		return 0, err
	}

	jumpToEnd := c.b.NewProg()
	jumpToEnd.As = obj.AJMP
	jumpToEnd.To.Type = obj.TYPE_BRANCH
	c.b.AddInstruction(jumpToEnd)

	elseStart := c.b.NewProg()
	elseStart.As = obj.ANOP
	c.b.AddInstruction(elseStart)
	jumpToElse.To.SetTarget(elseStart)

	elseReg, err := c.emitExpr(e.Else)
	if err != nil {
		return 0, err
	}
	if elseReg != resultReg {
		return 0, fmt.Errorf("refcompiler: if/else branches produced different register classes")
	}

	end := c.b.NewProg()
	end.As = obj.ANOP
	c.b.AddInstruction(end)
	jumpToEnd.To.SetTarget(end)

	return resultReg, nil
}

func (c *compiler) emitCall(e *Instr) (int16, error) {
	if len(e.Args) != len(e.Callee.paramTypes) {
		return 0, fmt.Errorf("refcompiler: call argument count mismatch")
	}
	intIdx, floatIdx := 0, 0
	for i, arg := range e.Args {
		reg, err := c.emitExpr(arg)
		if err != nil {
			return 0, err
		}
		want := e.Callee.paramTypes[i]
		if want.isFloat() {
			c.movFloatReg(reg, floatParamRegs[floatIdx])
			floatIdx++
		} else {
			c.movIntReg(reg, intParamRegs[intIdx], want)
			intIdx++
		}
	}

	loadTarget := c.b.NewProg()
	loadTarget.As = x86.AMOVQ
	loadTarget.From.Type = obj.TYPE_CONST
	loadTarget.From.Offset = int64(e.Callee.entry)
	loadTarget.To.Type = obj.TYPE_REG
	loadTarget.To.Reg = regTmp
	c.b.AddInstruction(loadTarget)

	call := c.b.NewProg()
	call.As = obj.ACALL
	call.To.Type = obj.TYPE_REG
	call.To.Reg = regTmp
	c.b.AddInstruction(call)

	if e.Type.isFloat() {
		return regFAcc, nil
	}
	return regAcc, nil
}

func (c *compiler) loadIntConst(v int64, dst int16) {
	p := c.b.NewProg()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = v
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	c.b.AddInstruction(p)
}

func (c *compiler) loadFloatConst(v float64, dst int16) {
	// golang-asm has no float-immediate addressing mode reachable from
	// here without a constant pool; route the bit pattern through the
	// integer accumulator and reinterpret it, the same trick a real
	// assembler's constant-pool lowering performs at a lower level.
	bits := int64(int64BitsFromFloat(v))
	c.loadIntConst(bits, regTmp)
	p := c.b.NewProg()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = regTmp
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	c.b.AddInstruction(p)
}

func (c *compiler) movInt(src, dst int16, t ValType) {
	p := c.b.NewProg()
	p.As = moveOpFor(t)
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	c.b.AddInstruction(p)
}

func (c *compiler) movIntReg(src, dst int16, t ValType) { c.movInt(src, dst, t) }

func (c *compiler) movFloat(src, dst int16, t ValType) {
	p := c.b.NewProg()
	if t == F32 {
		p.As = x86.AMOVSS
	} else {
		p.As = x86.AMOVSD
	}
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	c.b.AddInstruction(p)
}

func (c *compiler) movFloatReg(src, dst int16) { c.movFloat(src, dst, F64) }

func (c *compiler) pushInt(reg int16) {
	p := c.b.NewProg()
	p.As = x86.APUSHQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = reg
	c.b.AddInstruction(p)
}

func (c *compiler) popInt(reg int16) {
	p := c.b.NewProg()
	p.As = x86.APOPQ
	p.To.Type = obj.TYPE_REG
	p.To.Reg = reg
	c.b.AddInstruction(p)
}

// pushFloat/popFloat spill through a 8-byte stack slot reserved via SP,
// since golang-asm's x86 backend has no PUSH/POP for XMM registers.
func (c *compiler) pushFloat(reg int16) {
	sub := c.b.NewProg()
	sub.As = x86.ASUBQ
	sub.From.Type = obj.TYPE_CONST
	sub.From.Offset = 8
	sub.To.Type = obj.TYPE_REG
	sub.To.Reg = x86.REG_SP
	c.b.AddInstruction(sub)

	store := c.b.NewProg()
	store.As = x86.AMOVSD
	store.From.Type = obj.TYPE_REG
	store.From.Reg = reg
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = x86.REG_SP
	c.b.AddInstruction(store)
}

func (c *compiler) popFloat(reg int16) {
	load := c.b.NewProg()
	load.As = x86.AMOVSD
	load.From.Type = obj.TYPE_MEM
	load.From.Reg = x86.REG_SP
	load.To.Type = obj.TYPE_REG
	load.To.Reg = reg
	c.b.AddInstruction(load)

	add := c.b.NewProg()
	add.As = x86.AADDQ
	add.From.Type = obj.TYPE_CONST
	add.From.Offset = 8
	add.To.Type = obj.TYPE_REG
	add.To.Reg = x86.REG_SP
	c.b.AddInstruction(add)
}

func (c *compiler) binIntOp(op Op, t ValType, dst, src int16) {
	p := c.b.NewProg()
	switch op {
	case OpAdd:
		p.As = x86.AADDQ
	case OpSub:
		p.As = x86.ASUBQ
	case OpMul:
		p.As = x86.AIMULQ
	}
	if t == I32 {
		switch op {
		case OpAdd:
			p.As = x86.AADDL
		case OpSub:
			p.As = x86.ASUBL
		case OpMul:
			p.As = x86.AIMULL
		}
	}
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	c.b.AddInstruction(p)
}

func (c *compiler) binFloatOp(op Op, t ValType, dst, src int16) {
	p := c.b.NewProg()
	switch {
	case op == OpAdd && t == F32:
		p.As = x86.AADDSS
	case op == OpAdd:
		p.As = x86.AADDSD
	case op == OpSub && t == F32:
		p.As = x86.ASUBSS
	case op == OpSub:
		p.As = x86.ASUBSD
	case op == OpMul && t == F32:
		p.As = x86.AMULSS
	default:
		p.As = x86.AMULSD
	}
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	c.b.AddInstruction(p)
}

func (c *compiler) emitMoveToReturn(reg int16, t ValType) {
	if t.isFloat() && reg != regFAcc {
		c.movFloat(reg, regFAcc, t)
	} else if !t.isFloat() && reg != regAcc {
		c.movInt(reg, regAcc, t)
	}
}

func (c *compiler) emitRet() {
	p := c.b.NewProg()
	p.As = obj.ARET
	c.b.AddInstruction(p)
}

func moveOpFor(t ValType) obj.As {
	if t == I32 {
		return x86.AMOVL
	}
	return x86.AMOVQ
}

func int64BitsFromFloat(v float64) uint64 { return math.Float64bits(v) }

// mapExecutable copies code into a fresh anonymous mmap mapping with
// execute permission and returns its entry address. The mapping is
// leaked for the CompiledFunc's lifetime and released on Close.
func mapExecutable(code []byte) (uintptr, []byte, error) {
	mem, err := syscall.Mmap(-1, 0, len(code), syscall.PROT_READ|syscall.PROT_WRITE|syscall.PROT_EXEC, syscall.MAP_PRIVATE|syscall.MAP_ANON)
	if err != nil {
		return 0, nil, fmt.Errorf("refcompiler: mmap executable region: %w", err)
	}
	copy(mem, code)
	return uintptr(unsafe.Pointer(&mem[0])), mem, nil
}

// Close releases the executable mapping backing fn. fn must not be called
// again afterward.
func (fn *CompiledFunc) Close() error {
	if fn.code == nil {
		return nil
	}
	err := syscall.Munmap(fn.code)
	fn.code = nil
	return err
}

// CallInt invokes fn, which must take only integer (I32/I64) params and
// return an integer result, following the System V AMD64 calling
// convention the reference compiler targets.
func (fn *CompiledFunc) CallInt(args ...int64) (int64, error) {
	for _, t := range fn.paramTypes {
		if t.isFloat() {
			return 0, fmt.Errorf("refcompiler: CallInt on a function with a float parameter")
		}
	}
	if fn.resultType.isFloat() {
		return 0, fmt.Errorf("refcompiler: CallInt on a function with a float result")
	}
	if len(args) > maxIntParams {
		return 0, fmt.Errorf("refcompiler: too many arguments")
	}
	var a [maxIntParams]int64
	copy(a[:], args)
	trampoline := *(*func(int64, int64, int64, int64) int64)(unsafe.Pointer(&fn.entry))
	return trampoline(a[0], a[1], a[2], a[3]), nil
}
