// SPDX-License-Identifier: Apache-2.0
package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"turbine/internal/ir"
)

// Print renders mod in the spec §6.1 syntax. Display indices are
// (re)assigned fresh per function before printing, per
// ir.AssignDisplayIndices's own contract, so printing twice in a row
// without intervening edits yields byte-identical output.
func Print(mod *ir.Module) string {
	var b strings.Builder
	for i, fn := range mod.Functions() {
		if i > 0 {
			b.WriteString("\n")
		}
		printFunction(&b, fn)
	}
	return b.String()
}

func printFunction(b *strings.Builder, fn *ir.Function) {
	ir.AssignDisplayIndices(fn)
	if fn.Extern() {
		fmt.Fprintf(b, "extern %s %s(%s);\n", fn.ReturnType(), fn.Name(), paramList(fn))
		return
	}
	fmt.Fprintf(b, "%s %s(%s) {\n", fn.ReturnType(), fn.Name(), paramList(fn))
	for _, blk := range fn.Blocks() {
		fmt.Fprintf(b, "%s:\n", blk.Label())
		for _, inst := range blk.Instructions() {
			b.WriteString("  ")
			printInstr(b, inst)
			b.WriteString("\n")
		}
	}
	b.WriteString("}\n")
}

func paramList(fn *ir.Function) string {
	parts := make([]string, len(fn.Params()))
	for i, p := range fn.Params() {
		parts[i] = fmt.Sprintf("%s %s", p.Type(), valueRef(p))
	}
	return strings.Join(parts, ", ")
}

// valueRef renders an operand in its use position: "vN" for anything
// with a display index (parameters, non-void instructions), a block
// label for branch/Phi targets, a function name for a call callee, or
// the constant's own literal spelling.
func valueRef(v ir.Value) string {
	switch val := v.(type) {
	case *ir.ConstantValue:
		if val.IsNullPointer() {
			return "null"
		}
		if it, ok := val.Type().(*ir.IntType); ok && it.Bits() == 1 {
			if val.Bool() {
				return "true"
			}
			return "false"
		}
		return strconv.FormatUint(val.Uint64(), 10)
	case *ir.UndefValue:
		return "undef"
	case *ir.Block:
		return val.Label()
	case *ir.Function:
		return val.Name()
	default:
		return "v" + strconv.Itoa(v.DisplayIndex())
	}
}

func result(inst ir.Instruction) string {
	if !ir.HasResult(inst) {
		return ""
	}
	return "v" + strconv.Itoa(inst.DisplayIndex()) + " = "
}

func printInstr(b *strings.Builder, inst ir.Instruction) {
	b.WriteString(result(inst))
	switch inst.Opcode() {
	case ir.OpNeg, ir.OpNot:
		u := inst.(*ir.UnaryInst)
		fmt.Fprintf(b, "%s %s %s", inst.Opcode(), u.Type(), valueRef(u.X()))

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDivU, ir.OpDivS, ir.OpModU, ir.OpModS,
		ir.OpShr, ir.OpShl, ir.OpSar, ir.OpAnd, ir.OpOr, ir.OpXor:
		bi := inst.(*ir.BinaryInst)
		fmt.Fprintf(b, "%s %s %s, %s", inst.Opcode(), bi.LHS().Type(), valueRef(bi.LHS()), valueRef(bi.RHS()))

	case ir.OpCmpEq, ir.OpCmpNe, ir.OpCmpUgt, ir.OpCmpUgte, ir.OpCmpSgt, ir.OpCmpSgte,
		ir.OpCmpUlt, ir.OpCmpUlte, ir.OpCmpSlt, ir.OpCmpSlte:
		c := inst.(*ir.IntCompareInst)
		fmt.Fprintf(b, "cmp %s %s %s, %s", c.Predicate(), c.LHS().Type(), valueRef(c.LHS()), valueRef(c.RHS()))

	case ir.OpLoad:
		l := inst.(*ir.LoadInst)
		fmt.Fprintf(b, "load %s %s", l.Type(), valueRef(l.Pointer()))

	case ir.OpStore:
		s := inst.(*ir.StoreInst)
		fmt.Fprintf(b, "store %s %s, %s", s.Value_().Type(), valueRef(s.Pointer()), valueRef(s.Value_()))

	case ir.OpCall:
		c := inst.(*ir.CallInst)
		args := make([]string, len(c.Args()))
		for i, a := range c.Args() {
			args[i] = fmt.Sprintf("%s %s", a.Type(), valueRef(a))
		}
		fmt.Fprintf(b, "call %s %s(%s)", c.Callee().ReturnType(), c.Callee().Name(), strings.Join(args, ", "))

	case ir.OpBranch:
		br := inst.(*ir.BranchInst)
		fmt.Fprintf(b, "branch %s", valueRef(br.Target()))

	case ir.OpCondBranch:
		cb := inst.(*ir.CondBranchInst)
		fmt.Fprintf(b, "bcond %s %s, %s, %s", cb.Condition().Type(), valueRef(cb.Condition()),
			valueRef(cb.TrueTarget()), valueRef(cb.FalseTarget()))

	case ir.OpStackAlloc:
		sa := inst.(*ir.StackAllocInst)
		if sa.Size() == 1 {
			fmt.Fprintf(b, "stackalloc %s", sa.ElemType())
		} else {
			fmt.Fprintf(b, "stackalloc %s, %d", sa.ElemType(), sa.Size())
		}

	case ir.OpRet:
		r := inst.(*ir.RetInst)
		if r.Value() == nil {
			b.WriteString("ret void")
		} else {
			fmt.Fprintf(b, "ret %s %s", r.Value().Type(), valueRef(r.Value()))
		}

	case ir.OpOffset:
		o := inst.(*ir.OffsetInst)
		fmt.Fprintf(b, "offset %s %s, %s", o.Type(), valueRef(o.Base()), valueRef(o.Index()))

	case ir.OpZeroExtend, ir.OpSignExtend, ir.OpTruncate, ir.OpBitcast:
		c := inst.(*ir.CastInst)
		fmt.Fprintf(b, "%s %s %s to %s", inst.Opcode(), c.Src().Type(), valueRef(c.Src()), c.Type())

	case ir.OpSelect:
		s := inst.(*ir.SelectInst)
		fmt.Fprintf(b, "select %s %s, %s, %s", s.Type(), valueRef(s.Condition()), valueRef(s.IfTrue()), valueRef(s.IfFalse()))

	case ir.OpPhi:
		p := inst.(*ir.PhiInst)
		pairs := make([]string, p.IncomingCount())
		for i := 0; i < p.IncomingCount(); i++ {
			pairs[i] = fmt.Sprintf("%s: %s", p.IncomingBlock(i).Label(), valueRef(p.IncomingValue(i)))
		}
		fmt.Fprintf(b, "phi %s [%s]", p.Type(), strings.Join(pairs, ", "))
	}
}
