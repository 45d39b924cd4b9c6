// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestGlobalReorderingSinksInstructionToItsSoleUser: a pure add computed
// in entry whose only use lives in the next block sinks down to sit
// right before that use.
func TestGlobalReorderingSinksInstructionToItsSoleUser(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"x", "y", "z"}, []ir.Type{i32, i32, i32})
	entry := fn.AppendBlock()
	used := fn.AppendBlock()
	x, y, z := fn.Params()[0], fn.Params()[1], fn.Params()[2]

	add := ir.AtBlockBack(entry).Add(ctx, x, y)
	ir.AtBlockBack(entry).Branch(ctx, used)

	sub := ir.AtBlockBack(used).Sub(ctx, add, z)
	ir.AtBlockBack(used).Ret(ctx, sub)

	require.True(t, GlobalReordering(fn))
	require.Same(t, used, add.Block())

	insts := used.Instructions()
	require.Equal(t, ir.Instruction(add), insts[0])
	require.Equal(t, ir.Instruction(sub), insts[1])
}

// TestGlobalReorderingLeavesSameBlockUseAlone: an add used later in the
// same block has nowhere to sink.
func TestGlobalReorderingLeavesSameBlockUseAlone(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"x", "y"}, []ir.Type{i32, i32})
	entry := fn.AppendBlock()
	x, y := fn.Params()[0], fn.Params()[1]

	add := ir.AtBlockBack(entry).Add(ctx, x, y)
	sub := ir.AtBlockBack(entry).Sub(ctx, add, y)
	ir.AtBlockBack(entry).Ret(ctx, sub)

	require.False(t, GlobalReordering(fn))
}
