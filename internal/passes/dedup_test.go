// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

func TestInstructionDeduplicationCollapsesIdenticalAdds(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"a", "b"}, []ir.Type{i32, i32})
	entry := fn.AppendBlock()
	a, b := fn.Params()[0], fn.Params()[1]

	first := ir.AtBlockBack(entry).Add(ctx, a, b)
	second := ir.AtBlockBack(entry).Add(ctx, b, a) // commutative: same identifier
	sum := ir.AtBlockBack(entry).Add(ctx, first, second)
	ir.AtBlockBack(entry).Ret(ctx, sum)

	require.True(t, InstructionDeduplication(fn))

	ret := entry.Terminator().(*ir.RetInst)
	addSum := ret.Value().(*ir.BinaryInst)
	require.Equal(t, ir.Value(first), addSum.LHS())
	require.Equal(t, ir.Value(first), addSum.RHS())
}

// TestInstructionDeduplicationSkipsLoadAcrossInterveningStore: two loads
// of the same pointer must not collapse when a store that may alias the
// pointer sits between them.
func TestInstructionDeduplicationSkipsLoadAcrossInterveningStore(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	ptr := ctx.PointerType(i32, 1)
	fn := ir.NewFunction(ctx, "f", i32, []string{"p"}, []ir.Type{ptr})
	entry := fn.AppendBlock()
	p := fn.Params()[0]

	load1 := ir.AtBlockBack(entry).Load(ctx, p)
	ir.AtBlockBack(entry).Store(ctx, p, ctx.GetConstant(i32, 1))
	load2 := ir.AtBlockBack(entry).Load(ctx, p)
	sum := ir.AtBlockBack(entry).Add(ctx, load1, load2)
	ir.AtBlockBack(entry).Ret(ctx, sum)

	require.False(t, InstructionDeduplication(fn))
}
