// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestMemoryToSSAPromotesScalarSlot is spec §8 scenario 3: `v0 =
// stackalloc i32; store v0, 5; v1 = load v0; ret i32 v1` becomes
// `ret i32 5` with no stackalloc remaining.
func TestMemoryToSSAPromotesScalarSlot(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	m := ir.NewModule(ctx)
	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	m.AddFunction(fn)
	entry := fn.AppendBlock()

	sa := ir.AtBlockBack(entry).StackAlloc(ctx, i32, 1)
	ir.AtBlockBack(entry).Store(ctx, sa, ctx.GetConstant(i32, 5))
	load := ir.AtBlockBack(entry).Load(ctx, sa)
	ir.AtBlockBack(entry).Ret(ctx, load)

	require.True(t, MemoryToSSA(fn))

	ret := entry.Terminator().(*ir.RetInst)
	c, ok := ret.Value().(*ir.ConstantValue)
	require.True(t, ok)
	require.Equal(t, uint64(5), c.Uint64())

	for _, inst := range entry.Instructions() {
		_, isAlloc := inst.(*ir.StackAllocInst)
		require.False(t, isAlloc, "no stackalloc should remain")
	}
}

// TestMemoryToSSALeavesEscapingAllocationAlone: a stackalloc passed to a
// Call escapes safety and must not be promoted.
func TestMemoryToSSALeavesEscapingAllocationAlone(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	ptr := ctx.PointerType(i32, 1)
	m := ir.NewModule(ctx)

	callee := ir.NewFunction(ctx, "use", ctx.Void(), []string{"p"}, []ir.Type{ptr})
	m.AddFunction(callee)

	fn := ir.NewFunction(ctx, "f", ctx.Void(), nil, nil)
	m.AddFunction(fn)
	entry := fn.AppendBlock()
	sa := ir.AtBlockBack(entry).StackAlloc(ctx, i32, 1)
	ir.AtBlockBack(entry).Call(ctx, callee, []ir.Value{sa})
	ir.AtBlockBack(entry).Ret(ctx, nil)

	require.False(t, MemoryToSSA(fn))
}
