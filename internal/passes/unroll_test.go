// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestLoopUnrollingFullyUnrollsKnownTripCount is spec §8 scenario 5: a
// single-block loop `i = phi [entry: 0, header: i+1]; cbr i<3, header,
// exit` has a statically interpretable trip count of 3 and is fully
// unrolled, leaving no conditional branch behind.
func TestLoopUnrollingFullyUnrollsKnownTripCount(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	ir.NewModule(ctx).AddFunction(fn)
	entry := fn.AppendBlock()
	header := fn.AppendBlock()
	exit := fn.AppendBlock()

	ir.AtBlockBack(entry).Branch(ctx, header)

	phi := ir.AtBlockFront(header).Phi(ctx, i32)
	zero := ctx.GetConstant(i32, 0)
	phi.AddIncoming(entry, zero)

	inext := ir.AtBlockBack(header).Add(ctx, phi, ctx.GetConstant(i32, 1))
	phi.AddIncoming(header, inext)

	cmp := ir.AtBlockBack(header).Cmp(ctx, ir.OpCmpUlt, phi, ctx.GetConstant(i32, 3))
	ir.AtBlockBack(header).CondBranch(ctx, cmp, header, exit)

	exitPhi := ir.AtBlockFront(exit).Phi(ctx, i32)
	exitPhi.AddIncoming(header, phi)
	ir.AtBlockBack(exit).Ret(ctx, exitPhi)

	require.True(t, LoopUnrolling(fn))

	for _, b := range fn.Blocks() {
		for _, inst := range b.Instructions() {
			_, isCond := inst.(*ir.CondBranchInst)
			require.False(t, isCond, "no conditional branch should remain after full unrolling")
		}
	}
	// entry, three header generations, exit.
	require.Len(t, fn.Blocks(), 5)
}

// TestLoopUnrollingLeavesUnknownTripCountAlone: a loop whose exit
// condition depends on a Load can't be interpreted at compile time and
// must be left untouched.
func TestLoopUnrollingLeavesUnknownTripCountAlone(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	ptr := ctx.PointerType(i32, 1)
	fn := ir.NewFunction(ctx, "f", i32, []string{"p"}, []ir.Type{ptr})
	entry := fn.AppendBlock()
	header := fn.AppendBlock()
	exit := fn.AppendBlock()
	p := fn.Params()[0]

	ir.AtBlockBack(entry).Branch(ctx, header)

	phi := ir.AtBlockFront(header).Phi(ctx, i32)
	phi.AddIncoming(entry, ctx.GetConstant(i32, 0))
	inext := ir.AtBlockBack(header).Add(ctx, phi, ctx.GetConstant(i32, 1))
	phi.AddIncoming(header, inext)

	bound := ir.AtBlockBack(header).Load(ctx, p)
	cmp := ir.AtBlockBack(header).Cmp(ctx, ir.OpCmpUlt, phi, bound)
	ir.AtBlockBack(header).CondBranch(ctx, cmp, header, exit)

	exitPhi := ir.AtBlockFront(exit).Phi(ctx, i32)
	exitPhi.AddIncoming(header, phi)
	ir.AtBlockBack(exit).Ret(ctx, exitPhi)

	require.False(t, LoopUnrolling(fn))
	require.Len(t, fn.Blocks(), 3)
}
