package refcompiler

import (
	"testing"

	"github.com/wavmgo/wavm/internal/testing/require"
)

func TestCompileIdentity(t *testing.T) {
	fn, err := Compile(&Program{
		Params: []ValType{I64},
		Result: I64,
		Body:   Local(I64, 0),
	})
	require.NoError(t, err)
	defer fn.Close()

	got, err := fn.CallInt(42)
	require.NoError(t, err)
	require.Equal(t, int64(42), got)
}

func TestCompileArithmetic(t *testing.T) {
	fn, err := Compile(&Program{
		Params: []ValType{I64, I64},
		Result: I64,
		Body:   Mul(Add(Local(I64, 0), Local(I64, 1)), ConstInt(I64, 2)),
	})
	require.NoError(t, err)
	defer fn.Close()

	got, err := fn.CallInt(3, 4)
	require.NoError(t, err)
	require.Equal(t, int64(14), got) // (3+4)*2
}

func TestCompileI32ArithmeticZeroExtends(t *testing.T) {
	fn, err := Compile(&Program{
		Params: []ValType{I32, I32},
		Result: I32,
		Body:   Sub(Local(I32, 0), Local(I32, 1)),
	})
	require.NoError(t, err)
	defer fn.Close()

	got, err := fn.CallInt(10, 3)
	require.NoError(t, err)
	require.Equal(t, int64(7), got)
}

func TestCompileIfElse(t *testing.T) {
	// min(a, b) via if (a - b) ... the reference compiler's if/else
	// takes an explicit precomputed condition rather than a comparison
	// opcode, so build it as: cond = a - b (non-zero when unequal, but
	// we only need zero/non-zero here) is not quite "less than"; instead
	// exercise the branch shape directly with a constant condition.
	fn, err := Compile(&Program{
		Params: []ValType{I64},
		Result: I64,
		Body: IfElse(
			Local(I64, 0),
			ConstInt(I64, 111),
			ConstInt(I64, 222),
		),
	})
	require.NoError(t, err)
	defer fn.Close()

	got, err := fn.CallInt(1)
	require.NoError(t, err)
	require.Equal(t, int64(111), got)

	got, err = fn.CallInt(0)
	require.NoError(t, err)
	require.Equal(t, int64(222), got)
}

func TestCompileCallComposesTwoFunctions(t *testing.T) {
	double, err := Compile(&Program{
		Params: []ValType{I64},
		Result: I64,
		Body:   Add(Local(I64, 0), Local(I64, 0)),
	})
	require.NoError(t, err)
	defer double.Close()

	quad, err := Compile(&Program{
		Params: []ValType{I64},
		Result: I64,
		Body:   Call(double, Call(double, Local(I64, 0))),
	})
	require.NoError(t, err)
	defer quad.Close()

	got, err := quad.CallInt(5)
	require.NoError(t, err)
	require.Equal(t, int64(20), got)
}

func TestCompileRejectsTooManyParams(t *testing.T) {
	_, err := Compile(&Program{
		Params: []ValType{I64, I64, I64, I64, I64},
		Result: I64,
		Body:   Local(I64, 0),
	})
	require.Error(t, err)
}
