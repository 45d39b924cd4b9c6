// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestGeneralSimplificationSubSelf is spec §8 scenario 1 verbatim: `v0 =
// sub i32 a, a; ret i32 v0` becomes `ret i32 0`.
func TestGeneralSimplificationSubSelf(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"a"}, []ir.Type{i32})
	entry := fn.AppendBlock()
	a := fn.Params()[0]
	sub := ir.AtBlockBack(entry).Sub(ctx, a, a)
	ir.AtBlockBack(entry).Ret(ctx, sub)

	require.True(t, GeneralSimplification(fn))

	ret := entry.Terminator().(*ir.RetInst)
	c, ok := ret.Value().(*ir.ConstantValue)
	require.True(t, ok)
	require.Equal(t, uint64(0), c.Uint64())
}

func TestGeneralSimplificationAddZeroAndMulOne(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"a"}, []ir.Type{i32})
	entry := fn.AppendBlock()
	a := fn.Params()[0]
	add := ir.AtBlockBack(entry).Add(ctx, a, ctx.GetConstant(i32, 0))
	mul := ir.AtBlockBack(entry).Mul(ctx, add, ctx.GetConstant(i32, 1))
	ir.AtBlockBack(entry).Ret(ctx, mul)

	require.True(t, GeneralSimplification(fn))

	ret := entry.Terminator().(*ir.RetInst)
	require.Equal(t, ir.Value(a), ret.Value())
}

func TestGeneralSimplificationMulPowerOfTwoBecomesShift(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"a"}, []ir.Type{i32})
	entry := fn.AppendBlock()
	a := fn.Params()[0]
	mul := ir.AtBlockBack(entry).Mul(ctx, a, ctx.GetConstant(i32, 8))
	ir.AtBlockBack(entry).Ret(ctx, mul)

	require.True(t, GeneralSimplification(fn))

	ret := entry.Terminator().(*ir.RetInst)
	shl, ok := ret.Value().(*ir.BinaryInst)
	require.True(t, ok)
	require.Equal(t, ir.OpShl, shl.Opcode())
	rhs := shl.RHS().(*ir.ConstantValue)
	require.Equal(t, uint64(3), rhs.Uint64())
}

// TestGeneralSimplificationCollapsesSingleIncomingPhi exercises the Phi
// half of GeneralSimplification: a Phi with a single distinct incoming
// value (ignoring its own self-reference) is replaced by that value.
func TestGeneralSimplificationCollapsesSingleIncomingPhi(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	entry := fn.AppendBlock()
	header := fn.AppendBlock()
	exit := fn.AppendBlock()

	ir.AtBlockBack(entry).Branch(ctx, header)
	phi := ir.AtBlockFront(header).Phi(ctx, i32)
	ten := ctx.GetConstant(i32, 10)
	phi.AddIncoming(entry, ten)
	phi.AddIncoming(header, phi)
	cond := ctx.GetConstant(ctx.I1(), 0)
	ir.AtBlockBack(header).CondBranch(ctx, cond, header, exit)
	ir.AtBlockBack(exit).Ret(ctx, phi)

	require.True(t, GeneralSimplification(fn))

	ret := exit.Terminator().(*ir.RetInst)
	require.Equal(t, ir.Value(ten), ret.Value())
}
