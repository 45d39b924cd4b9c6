// SPDX-License-Identifier: Apache-2.0
package irtext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/diag"
	"turbine/internal/ir"
)

const branchExample = `
i32 add_one(i32 x) {
entry:
  v0 = add i32 x, 1
  v1 = cmp slt i32 v0, 0
  bcond i1 v1, block_2, block_3
block_2:
  ret i32 v0
block_3:
  ret i32 0
}
`

func parseAndBuild(t *testing.T, src string) (*ir.Context, *ir.Module) {
	t.Helper()
	parsed, err := ParseString("test.ir", src)
	require.NoError(t, err)
	ctx := ir.NewContext()
	mod, err := Build(ctx, parsed)
	require.NoError(t, err)
	return ctx, mod
}

func TestParseAndBuildBranchExample(t *testing.T) {
	_, mod := parseAndBuild(t, branchExample)
	fn, ok := mod.Function("add_one")
	require.True(t, ok)
	require.False(t, fn.Extern())
	require.Len(t, fn.Blocks(), 3)

	var bag diag.Bag
	ir.Validate(fn, &bag)
	require.True(t, bag.Empty(), "%v", bag.Entries())
}

func TestPrintThenParseRoundTrips(t *testing.T) {
	_, mod := parseAndBuild(t, branchExample)
	printed := Print(mod)

	parsed, err := ParseString("roundtrip.ir", printed)
	require.NoError(t, err)
	ctx2 := ir.NewContext()
	mod2, err := Build(ctx2, parsed)
	require.NoError(t, err)

	fn2, ok := mod2.Function("add_one")
	require.True(t, ok)
	require.Len(t, fn2.Blocks(), 3)

	var bag diag.Bag
	ir.Validate(fn2, &bag)
	require.True(t, bag.Empty(), "%v", bag.Entries())

	require.Equal(t, printed, Print(mod2), "printing a parsed-back module must reproduce the same text")
}

func TestExternAndCall(t *testing.T) {
	src := `
extern i32 helper(i32 a);
i32 caller(i32 x) {
entry:
  v0 = call i32 helper(i32 x)
  ret i32 v0
}
`
	_, mod := parseAndBuild(t, src)
	helper, ok := mod.Function("helper")
	require.True(t, ok)
	require.True(t, helper.Extern())

	caller, ok := mod.Function("caller")
	require.True(t, ok)
	var bag diag.Bag
	ir.Validate(caller, &bag)
	require.True(t, bag.Empty(), "%v", bag.Entries())
}

func TestMemoryAcrossBranches(t *testing.T) {
	src := `
i32 pick(i1 c) {
entry:
  v0 = stackalloc i32
  store i32 v0, 5
  bcond i1 c, block_2, block_3
block_2:
  store i32 v0, 7
  branch block_4
block_3:
  branch block_4
block_4:
  v1 = load i32 v0
  ret i32 v1
}
`
	_, mod := parseAndBuild(t, src)
	fn, ok := mod.Function("pick")
	require.True(t, ok)
	var bag diag.Bag
	ir.Validate(fn, &bag)
	require.True(t, bag.Empty(), "%v", bag.Entries())
}

func TestPhiBackEdgeForwardReference(t *testing.T) {
	src := `
i32 loop(i32 n) {
entry:
  branch block_2
block_2:
  v0 = phi i32 [entry: 0, block_2: v1]
  v1 = add i32 v0, 1
  v2 = cmp slt i32 v1, n
  bcond i1 v2, block_2, block_3
block_3:
  ret i32 v0
}
`
	_, mod := parseAndBuild(t, src)
	fn, ok := mod.Function("loop")
	require.True(t, ok)
	var bag diag.Bag
	ir.Validate(fn, &bag)
	require.True(t, bag.Empty(), "%v", bag.Entries())
}
