// SPDX-License-Identifier: Apache-2.0
package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"turbine/internal/ir"
)

// buildSimpleLoop builds entry -> header -> body -> header (back edge),
// header -> exit, the minimal single natural loop shape.
func buildSimpleLoop(ctx *ir.Context, m *ir.Module) (fn *ir.Function, entry, header, body, exit *ir.Block) {
	i32 := ctx.I32()
	fn = ir.NewFunction(ctx, "loopy", i32, nil, nil)
	m.AddFunction(fn)
	entry = fn.AppendBlock()
	header = fn.AppendBlock()
	body = fn.AppendBlock()
	exit = fn.AppendBlock()

	ir.AtBlockBack(entry).Branch(ctx, header)
	cond := ctx.GetConstant(ctx.I1(), 1)
	ir.AtBlockBack(header).CondBranch(ctx, cond, body, exit)
	ir.AtBlockBack(body).Branch(ctx, header)
	ir.AtBlockBack(exit).Ret(ctx, ctx.GetConstant(i32, 0))
	return
}

func TestComputeSCCsFindsLoopCycle(t *testing.T) {
	ctx := ir.NewContext()
	m := ir.NewModule(ctx)
	_, entry, header, body, exit := buildSimpleLoop(ctx, m)

	blocks := map[*ir.Block]bool{entry: true, header: true, body: true, exit: true}
	sccs := ComputeSCCs(blocks)

	var loopSCC []*ir.Block
	for _, scc := range sccs {
		if len(scc) > 1 {
			loopSCC = scc
		}
	}
	assert.Len(t, loopSCC, 2)
	assert.Contains(t, loopSCC, header)
	assert.Contains(t, loopSCC, body)
}

func TestComputeSCCsTrivialAcyclicBlocksEachFormTheirOwnComponent(t *testing.T) {
	ctx := ir.NewContext()
	m := ir.NewModule(ctx)
	_, entry, _, _, _ := buildDiamond(ctx, m)

	blocks := map[*ir.Block]bool{entry: true}
	sccs := ComputeSCCs(blocks)
	assert.Len(t, sccs, 1)
	assert.Len(t, sccs[0], 1)
}
