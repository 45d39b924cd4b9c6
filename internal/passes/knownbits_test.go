// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

func TestKnownBitsPropagationFoldsAndWithZero(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"x"}, []ir.Type{i32})
	entry := fn.AppendBlock()
	x := fn.Params()[0]
	v := ir.AtBlockBack(entry).And(ctx, x, ctx.GetConstant(i32, 0))
	ir.AtBlockBack(entry).Ret(ctx, v)

	require.True(t, KnownBitsPropagation(fn))

	ret := entry.Terminator().(*ir.RetInst)
	c, ok := ret.Value().(*ir.ConstantValue)
	require.True(t, ok)
	require.Equal(t, uint64(0), c.Uint64())
}

func TestKnownBitsPropagationStripsAndWithAllOnes(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"x"}, []ir.Type{i32})
	entry := fn.AppendBlock()
	x := fn.Params()[0]
	v := ir.AtBlockBack(entry).And(ctx, x, ctx.GetConstant(i32, 0xFFFFFFFF))
	ir.AtBlockBack(entry).Ret(ctx, v)

	require.True(t, KnownBitsPropagation(fn))

	ret := entry.Terminator().(*ir.RetInst)
	require.Equal(t, ir.Value(x), ret.Value())
}
