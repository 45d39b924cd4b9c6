// SPDX-License-Identifier: Apache-2.0
package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// buildDisjoint builds a function where v0 dies before v1 is born, so
// they should share a register.
func buildDisjoint(ctx *ir.Context) *ir.Function {
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"a"}, []ir.Type{i32})
	entry := fn.AppendBlock()
	a := fn.Params()[0]
	one := ctx.GetConstant(i32, 1)

	v0 := ir.AtBlockBack(entry).Add(ctx, a, one)
	v1 := ir.AtBlockBack(entry).Mul(ctx, v0, one)
	v2 := ir.AtBlockBack(entry).Add(ctx, v1, one)
	ir.AtBlockBack(entry).Ret(ctx, v2)
	return fn
}

func TestAllocateReusesRegisterOfValueDyingAtDefinition(t *testing.T) {
	ctx := ir.NewContext()
	fn := buildDisjoint(ctx)

	oi := NewOrderedInstructions(fn)
	require.Equal(t, 4, oi.Len())

	regs := Allocate(fn)
	require.GreaterOrEqual(t, regs.Count(), 1)

	insts := fn.Entry().Instructions()
	addInst := insts[0]
	mulInst := insts[1]
	require.Equal(t, regs.Register(addInst), regs.Register(mulInst),
		"add's result dies at mul, where mul's result is born, so they share a register")
}

func TestLiveIntervalOverlaps(t *testing.T) {
	a := &LiveInterval{}
	a.Add(Range{Start: 0, End: 5})
	b := &LiveInterval{}
	b.Add(Range{Start: 3, End: 8})
	require.True(t, a.Overlaps(b))

	c := &LiveInterval{}
	c.Add(Range{Start: 6, End: 9})
	require.False(t, a.Overlaps(c))
}
