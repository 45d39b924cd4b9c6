// SPDX-License-Identifier: Apache-2.0
package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"turbine/internal/ir"
)

// buildDiamond builds entry -> {left, right} -> join -> ret, a standard
// if/else diamond, and returns the blocks in source order.
func buildDiamond(ctx *ir.Context, m *ir.Module) (fn *ir.Function, entry, left, right, join *ir.Block) {
	i32 := ctx.I32()
	fn = ir.NewFunction(ctx, "diamond", i32, []string{"x"}, []ir.Type{i32})
	m.AddFunction(fn)
	entry = fn.AppendBlock()
	left = fn.AppendBlock()
	right = fn.AppendBlock()
	join = fn.AppendBlock()

	cond := ctx.GetConstant(ctx.I1(), 1)
	ir.AtBlockBack(entry).CondBranch(ctx, cond, left, right)
	ir.AtBlockBack(left).Branch(ctx, join)
	ir.AtBlockBack(right).Branch(ctx, join)
	ir.AtBlockBack(join).Ret(ctx, fn.Params()[0])
	return
}

func TestDominatorTreeDiamond(t *testing.T) {
	ctx := ir.NewContext()
	m := ir.NewModule(ctx)
	fn, entry, left, right, join := buildDiamond(ctx, m)

	dom := BuildDominatorTree(fn)

	assert.Nil(t, dom.ImmediateDominator(entry))
	assert.Same(t, entry, dom.ImmediateDominator(left))
	assert.Same(t, entry, dom.ImmediateDominator(right))
	assert.Same(t, entry, dom.ImmediateDominator(join), "join is dominated by entry, not by either branch alone")

	assert.True(t, dom.Dominates(entry, join))
	assert.True(t, dom.Dominates(entry, entry))
	assert.False(t, dom.Dominates(left, join))
	assert.False(t, dom.Dominates(join, entry))
}

func TestDominatorTreeDeadBlock(t *testing.T) {
	ctx := ir.NewContext()
	m := ir.NewModule(ctx)
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	m.AddFunction(fn)
	entry := fn.AppendBlock()
	unreachable := fn.AppendBlock()
	ir.AtBlockBack(entry).Ret(ctx, ctx.GetConstant(i32, 0))
	ir.AtBlockBack(unreachable).Ret(ctx, ctx.GetConstant(i32, 1))

	dom := BuildDominatorTree(fn)
	assert.False(t, dom.IsBlockDead(entry))
	assert.True(t, dom.IsBlockDead(unreachable))
}

func TestDominatorTreePanicsAfterMutation(t *testing.T) {
	ctx := ir.NewContext()
	m := ir.NewModule(ctx)
	fn, entry, _, _, _ := buildDiamond(ctx, m)

	dom := BuildDominatorTree(fn)
	fn.AppendBlock()

	assert.Panics(t, func() { dom.ImmediateDominator(entry) })
}
