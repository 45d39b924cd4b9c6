// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestKnownLoadEliminationForwardsStoredValue: a Load right after a
// Store to the same pointer, with nothing in between that could
// invalidate it, is replaced by the stored value directly.
func TestKnownLoadEliminationForwardsStoredValue(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	entry := fn.AppendBlock()

	p := ir.AtBlockBack(entry).StackAlloc(ctx, i32, 1)
	stored := ctx.GetConstant(i32, 9)
	ir.AtBlockBack(entry).Store(ctx, p, stored)
	load := ir.AtBlockBack(entry).Load(ctx, p)
	ir.AtBlockBack(entry).Ret(ctx, load)

	require.True(t, KnownLoadElimination(fn))

	ret := entry.Terminator().(*ir.RetInst)
	require.Equal(t, ir.Value(stored), ret.Value())
}

// TestKnownLoadEliminationSkipsLoadAfterInterveningCall: a Call between
// the Store and the Load might write through the pointer, so the load
// can't be forwarded.
func TestKnownLoadEliminationSkipsLoadAfterInterveningCall(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	ptr := ctx.PointerType(i32, 1)
	m := ir.NewModule(ctx)

	callee := ir.NewFunction(ctx, "mutate", ctx.Void(), []string{"q"}, []ir.Type{ptr})
	m.AddFunction(callee)
	calleeEntry := callee.AppendBlock()
	ir.AtBlockBack(calleeEntry).Ret(ctx, nil)

	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	m.AddFunction(fn)
	entry := fn.AppendBlock()

	p := ir.AtBlockBack(entry).StackAlloc(ctx, i32, 1)
	ir.AtBlockBack(entry).Store(ctx, p, ctx.GetConstant(i32, 9))
	ir.AtBlockBack(entry).Call(ctx, callee, []ir.Value{p})
	load := ir.AtBlockBack(entry).Load(ctx, p)
	ir.AtBlockBack(entry).Ret(ctx, load)

	require.False(t, KnownLoadElimination(fn))
}
