// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

func constOf(ctx *ir.Context, v uint64) *ir.ConstantValue {
	return ctx.GetConstant(ctx.I32(), v)
}

func TestConstantPropagationFoldsBinary(t *testing.T) {
	ctx := ir.NewContext()
	fn := ir.NewFunction(ctx, "f", ctx.I32(), nil, nil)
	entry := fn.AppendBlock()
	add := ir.AtBlockBack(entry).Add(ctx, constOf(ctx, 2), constOf(ctx, 3))
	ir.AtBlockBack(entry).Ret(ctx, add)

	changed := ConstantPropagation(fn)
	require.True(t, changed)

	ret := entry.Terminator().(*ir.RetInst)
	c, ok := ret.Value().(*ir.ConstantValue)
	require.True(t, ok)
	require.Equal(t, uint64(5), c.Uint64())
}

func TestConstantPropagationFoldsUnary(t *testing.T) {
	ctx := ir.NewContext()
	fn := ir.NewFunction(ctx, "f", ctx.I32(), nil, nil)
	entry := fn.AppendBlock()
	neg := ir.AtBlockBack(entry).Neg(ctx, constOf(ctx, 1))
	ir.AtBlockBack(entry).Ret(ctx, neg)

	require.True(t, ConstantPropagation(fn))

	ret := entry.Terminator().(*ir.RetInst)
	c := ret.Value().(*ir.ConstantValue)
	require.Equal(t, uint64(0xFFFFFFFF), c.Uint64())
}

func TestConstantPropagationFoldsCompare(t *testing.T) {
	ctx := ir.NewContext()
	fn := ir.NewFunction(ctx, "f", ctx.I1(), nil, nil)
	entry := fn.AppendBlock()
	cmp := ir.AtBlockBack(entry).Cmp(ctx, ir.OpCmpSlt, constOf(ctx, 1), constOf(ctx, 2))
	ir.AtBlockBack(entry).Ret(ctx, cmp)

	require.True(t, ConstantPropagation(fn))

	ret := entry.Terminator().(*ir.RetInst)
	c := ret.Value().(*ir.ConstantValue)
	require.Equal(t, uint64(1), c.Uint64())
}

func TestConstantPropagationFoldsSelect(t *testing.T) {
	ctx := ir.NewContext()
	fn := ir.NewFunction(ctx, "f", ctx.I32(), nil, nil)
	entry := fn.AppendBlock()
	cond := ctx.GetConstant(ctx.I1(), 0)
	sel := ir.AtBlockBack(entry).Select(ctx, cond, constOf(ctx, 10), constOf(ctx, 20))
	ir.AtBlockBack(entry).Ret(ctx, sel)

	require.True(t, ConstantPropagation(fn))

	ret := entry.Terminator().(*ir.RetInst)
	c := ret.Value().(*ir.ConstantValue)
	require.Equal(t, uint64(20), c.Uint64())
}

func TestConstantPropagationFoldsCast(t *testing.T) {
	ctx := ir.NewContext()
	fn := ir.NewFunction(ctx, "f", ctx.I64(), nil, nil)
	entry := fn.AppendBlock()
	ext := ir.AtBlockBack(entry).ZeroExtend(ctx, constOf(ctx, 7), ctx.I64())
	ir.AtBlockBack(entry).Ret(ctx, ext)

	require.True(t, ConstantPropagation(fn))

	ret := entry.Terminator().(*ir.RetInst)
	c := ret.Value().(*ir.ConstantValue)
	require.Equal(t, uint64(7), c.Uint64())
}

// TestConstantPropagationCollapsesCondBranch builds:
//
//	entry: condbr true, thenBlk, elseBlk
//	thenBlk: br join
//	elseBlk: br join
//	join: v = phi [thenBlk: 1, elseBlk: 2]; ret v
//
// After folding, entry should unconditionally branch to thenBlk and the
// phi's elseBlk incoming pair should be gone.
func TestConstantPropagationCollapsesCondBranch(t *testing.T) {
	ctx := ir.NewContext()
	fn := ir.NewFunction(ctx, "f", ctx.I32(), nil, nil)
	entry := fn.AppendBlock()
	thenBlk := fn.AppendBlock()
	elseBlk := fn.AppendBlock()
	join := fn.AppendBlock()

	cond := ctx.GetConstant(ctx.I1(), 1)
	ir.AtBlockBack(entry).CondBranch(ctx, cond, thenBlk, elseBlk)
	ir.AtBlockBack(thenBlk).Branch(ctx, join)
	ir.AtBlockBack(elseBlk).Branch(ctx, join)

	phi := ir.AtBlockFront(join).Phi(ctx, ctx.I32())
	phi.AddIncoming(thenBlk, constOf(ctx, 1))
	phi.AddIncoming(elseBlk, constOf(ctx, 2))
	ir.AtBlockBack(join).Ret(ctx, phi)

	require.True(t, ConstantPropagation(fn))

	term := entry.Terminator().(*ir.BranchInst)
	require.Equal(t, thenBlk, term.Target())

	incoming := phi.Incoming()
	require.Len(t, incoming, 1)
	require.Equal(t, thenBlk, incoming[0].Block)
}

func TestConstantPropagationLeavesNonConstantUntouched(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"a"}, []ir.Type{i32})
	entry := fn.AppendBlock()
	a := fn.Params()[0]
	add := ir.AtBlockBack(entry).Add(ctx, a, constOf(ctx, 1))
	ir.AtBlockBack(entry).Ret(ctx, add)

	require.False(t, ConstantPropagation(fn))
}
