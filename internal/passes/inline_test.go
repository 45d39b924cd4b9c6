// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestInlineCallsSplicesSmallCalleeIntoCaller builds a caller that calls
// a two-instruction callee; InlineCalls must remove the call, clone the
// callee's body into the caller, and route its return value through a
// Phi in the split-off continuation block.
func TestInlineCallsSplicesSmallCalleeIntoCaller(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	m := ir.NewModule(ctx)

	callee := ir.NewFunction(ctx, "add1", i32, []string{"a", "b"}, []ir.Type{i32, i32})
	m.AddFunction(callee)
	calleeEntry := callee.AppendBlock()
	a, b := callee.Params()[0], callee.Params()[1]
	sum := ir.AtBlockBack(calleeEntry).Add(ctx, a, b)
	ir.AtBlockBack(calleeEntry).Ret(ctx, sum)

	caller := ir.NewFunction(ctx, "f", i32, []string{"x", "y"}, []ir.Type{i32, i32})
	m.AddFunction(caller)
	entry := caller.AppendBlock()
	x, y := caller.Params()[0], caller.Params()[1]
	call := ir.AtBlockBack(entry).Call(ctx, callee, []ir.Value{x, y})
	ir.AtBlockBack(entry).Ret(ctx, call)

	require.True(t, InlineCalls(caller))

	for _, blk := range caller.Blocks() {
		for _, inst := range blk.Instructions() {
			_, isCall := inst.(*ir.CallInst)
			require.False(t, isCall, "no call should remain")
		}
	}
	require.Len(t, caller.Blocks(), 3, "entry, the cloned callee entry, and the continuation")

	br, ok := entry.Terminator().(*ir.BranchInst)
	require.True(t, ok)
	clonedEntry := br.Target()
	require.NotSame(t, entry, clonedEntry)

	cont := clonedEntry.Terminator().(*ir.BranchInst).Target()
	ret := cont.Terminator().(*ir.RetInst)
	phi, ok := ret.Value().(*ir.PhiInst)
	require.True(t, ok, "the inlined return value flows through a phi")
	require.Equal(t, 1, phi.IncomingCount())
}

// TestInlineCallsLeavesExternCalleeAlone: a call to an extern (bodyless)
// function can't be inlined.
func TestInlineCallsLeavesExternCalleeAlone(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	m := ir.NewModule(ctx)

	extern := ir.NewFunction(ctx, "ext", i32, []string{"a"}, []ir.Type{i32})
	m.AddFunction(extern)

	caller := ir.NewFunction(ctx, "f", i32, []string{"x"}, []ir.Type{i32})
	m.AddFunction(caller)
	entry := caller.AppendBlock()
	x := caller.Params()[0]
	call := ir.AtBlockBack(entry).Call(ctx, extern, []ir.Value{x})
	ir.AtBlockBack(entry).Ret(ctx, call)

	require.False(t, InlineCalls(caller))
}
