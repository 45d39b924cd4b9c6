// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestConditionalFlatteningCollapsesSymmetricDiamond builds A -> {B, C}
// -> D where B and C each hold one movable instruction; the diamond
// flattens into a single Select in D and A branches straight there.
func TestConditionalFlatteningCollapsesSymmetricDiamond(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"x", "y"}, []ir.Type{i32, i32})
	ir.NewModule(ctx).AddFunction(fn)
	a := fn.AppendBlock()
	b := fn.AppendBlock()
	c := fn.AppendBlock()
	d := fn.AppendBlock()
	x, y := fn.Params()[0], fn.Params()[1]

	cond := ir.AtBlockBack(a).Cmp(ctx, ir.OpCmpSlt, x, y)
	ir.AtBlockBack(a).CondBranch(ctx, cond, b, c)

	tVal := ir.AtBlockBack(b).Add(ctx, x, ctx.GetConstant(i32, 1))
	ir.AtBlockBack(b).Branch(ctx, d)

	fVal := ir.AtBlockBack(c).Add(ctx, y, ctx.GetConstant(i32, 2))
	ir.AtBlockBack(c).Branch(ctx, d)

	phi := ir.AtBlockFront(d).Phi(ctx, i32)
	phi.AddIncoming(b, tVal)
	phi.AddIncoming(c, fVal)
	ir.AtBlockBack(d).Ret(ctx, phi)

	require.True(t, ConditionalFlattening(fn))

	require.Len(t, fn.Blocks(), 2)
	require.Equal(t, d, a.Terminator().(*ir.BranchInst).Target())

	ret := d.Terminator().(*ir.RetInst)
	sel, ok := ret.Value().(*ir.SelectInst)
	require.True(t, ok, "phi should have become a select")
	require.Equal(t, ir.Value(cond), sel.Condition())
}

// TestConditionalFlatteningLeavesLoadBearingArmAlone: a body containing a
// Load is not movable, so the diamond must be left intact.
func TestConditionalFlatteningLeavesLoadBearingArmAlone(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	ptr := ctx.PointerType(i32, 1)
	fn := ir.NewFunction(ctx, "f", i32, []string{"x", "p"}, []ir.Type{i32, ptr})
	a := fn.AppendBlock()
	b := fn.AppendBlock()
	c := fn.AppendBlock()
	d := fn.AppendBlock()
	x, p := fn.Params()[0], fn.Params()[1]

	cond := ir.AtBlockBack(a).Cmp(ctx, ir.OpCmpSlt, x, ctx.GetConstant(i32, 0))
	ir.AtBlockBack(a).CondBranch(ctx, cond, b, c)

	loaded := ir.AtBlockBack(b).Load(ctx, p)
	ir.AtBlockBack(b).Branch(ctx, d)

	fVal := ir.AtBlockBack(c).Add(ctx, x, ctx.GetConstant(i32, 2))
	ir.AtBlockBack(c).Branch(ctx, d)

	phi := ir.AtBlockFront(d).Phi(ctx, i32)
	phi.AddIncoming(b, loaded)
	phi.AddIncoming(c, fVal)
	ir.AtBlockBack(d).Ret(ctx, phi)

	require.False(t, ConditionalFlattening(fn))
	require.Len(t, fn.Blocks(), 4)
}
