// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestLoopMemoryExtractionRoutesPointerThroughSlot builds a single-block
// loop that loads and stores through a parameter pointer p on every
// iteration; the pointer is primed into a preheader stack slot, every
// in-loop access goes through the slot, and the slot is flushed back to
// p once at the loop's exit.
func TestLoopMemoryExtractionRoutesPointerThroughSlot(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	ptr := ctx.PointerType(i32, 1)
	fn := ir.NewFunction(ctx, "f", ctx.Void(), []string{"p"}, []ir.Type{ptr})
	ir.NewModule(ctx).AddFunction(fn)
	entry := fn.AppendBlock()
	header := fn.AppendBlock()
	exit := fn.AppendBlock()
	p := fn.Params()[0]

	ir.AtBlockBack(entry).Branch(ctx, header)

	phi := ir.AtBlockFront(header).Phi(ctx, i32)
	phi.AddIncoming(entry, ctx.GetConstant(i32, 0))

	loaded := ir.AtBlockBack(header).Load(ctx, p)
	inc := ir.AtBlockBack(header).Add(ctx, loaded, ctx.GetConstant(i32, 1))
	storeInst := ir.AtBlockBack(header).Store(ctx, p, inc)
	inext := ir.AtBlockBack(header).Add(ctx, phi, ctx.GetConstant(i32, 1))
	phi.AddIncoming(header, inext)
	cmp := ir.AtBlockBack(header).Cmp(ctx, ir.OpCmpUlt, phi, ctx.GetConstant(i32, 3))
	ir.AtBlockBack(header).CondBranch(ctx, cmp, header, exit)

	ir.AtBlockBack(exit).Ret(ctx, nil)

	require.True(t, LoopMemoryExtraction(fn))

	var slot *ir.StackAllocInst
	for _, inst := range entry.Instructions() {
		if sa, ok := inst.(*ir.StackAllocInst); ok {
			slot = sa
		}
	}
	require.NotNil(t, slot, "a stack slot must be materialized in the preheader")
	require.Equal(t, ir.Value(slot), loaded.Pointer(), "the in-loop load must now target the slot")
	require.Equal(t, ir.Value(slot), storeInst.Pointer(), "the in-loop store must now target the slot")

	flushesToP := 0
	for _, inst := range exit.Instructions() {
		if s, ok := inst.(*ir.StoreInst); ok && s.Pointer() == ir.Value(p) {
			flushesToP++
		}
	}
	require.Equal(t, 1, flushesToP, "the slot must be flushed back to p once at the exit")
}
