// SPDX-License-Identifier: Apache-2.0
package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

func TestBlocksInBetweenExcludesBarrier(t *testing.T) {
	ctx := ir.NewContext()
	m := ir.NewModule(ctx)
	_, entry, left, _, join := buildDiamond(ctx, m)

	blocks := BlocksInBetween(entry, join, left)
	assert.True(t, blocks[entry])
	assert.True(t, blocks[join])
	assert.False(t, blocks[left], "left is the barrier and must be excluded from every path")
}

func TestBlocksFromDominatorToTarget(t *testing.T) {
	ctx := ir.NewContext()
	m := ir.NewModule(ctx)
	_, entry, _, right, join := buildDiamond(ctx, m)

	blocks := BlocksFromDominatorToTarget(entry, join)
	assert.True(t, blocks[entry])
	assert.True(t, blocks[join])
	assert.True(t, blocks[right])
}

func TestPathValidatorSameBlockChecksOnlyBetween(t *testing.T) {
	ctx := ir.NewContext()
	m := ir.NewModule(ctx)
	fn := ir.NewFunction(ctx, "f", ctx.I32(), nil, nil)
	m.AddFunction(fn)
	entry := fn.AppendBlock()

	i32 := ctx.I32()
	a := ir.AtBlockBack(entry).Add(ctx, ctx.GetConstant(i32, 1), ctx.GetConstant(i32, 2))
	b := ir.AtBlockBack(entry).Add(ctx, a, ctx.GetConstant(i32, 3))
	c := ir.AtBlockBack(entry).Add(ctx, b, ctx.GetConstant(i32, 4))
	ir.AtBlockBack(entry).Ret(ctx, c)

	dom := BuildDominatorTree(fn)
	pv := NewPathValidator(dom)

	var seen []ir.Instruction
	count, ok := pv.ValidatePath(a, c, MemoryKillNone, func(inst ir.Instruction) bool {
		seen = append(seen, inst)
		return true
	})
	require.True(t, ok)
	assert.Equal(t, 1, count)
	require.Len(t, seen, 1)
	assert.Same(t, ir.Instruction(b), seen[0])
}

func TestPathValidatorCrossBlockWalksDominatedRegion(t *testing.T) {
	ctx := ir.NewContext()
	m := ir.NewModule(ctx)
	fn, entry, left, right, join := buildDiamond(ctx, m)
	_ = right

	dom := BuildDominatorTree(fn)
	pv := NewPathValidator(dom)

	start := entry.Terminator()
	end := join.Terminator()

	var visited []*ir.Block
	count, ok := pv.ValidatePath(start, end, MemoryKillNone, func(inst ir.Instruction) bool {
		visited = append(visited, inst.Block())
		return true
	})
	require.True(t, ok)
	assert.Greater(t, count, 0)
	assert.Contains(t, visited, left)
}
