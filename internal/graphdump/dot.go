// SPDX-License-Identifier: Apache-2.0

// Package graphdump renders a function's control-flow graph as
// Graphviz dot source and, when the `dot` binary is available on
// PATH, shells out to rasterize it. Per spec.md §1 this is an
// external collaborator — nothing in the optimizer or pass pipeline
// depends on it — kept here so the IR has somewhere to go when a
// developer wants to look at a CFG instead of reading textual IR.
package graphdump

import (
	"fmt"
	"os/exec"
	"strings"

	"turbine/internal/ir"
)

const (
	colorBlock  = "808080"
	colorBorder = "BBBBBB"
	colorBranch = "blue"
	colorTrue   = "green"
	colorFalse  = "red"
)

// Source renders fn's control-flow graph as Graphviz dot source: one
// box per block, labeled with its instructions, with colored edges
// distinguishing an unconditional branch from the true/false arms of
// a conditional one.
func Source(fn *ir.Function) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", fn.Name())
	b.WriteString("  bgcolor=\"#2B2B2B\"\n")

	for _, blk := range fn.Blocks() {
		fmt.Fprintf(&b, "  %s [shape=box fontname=Consolas color=\"#%s\" label=\"%s\\l", blk.Label(), colorBorder, blk.Label())
		for _, inst := range blk.Instructions() {
			fmt.Fprintf(&b, "%s\\l", dotEscape(instructionLabel(inst)))
		}
		b.WriteString("\"];\n")
	}

	for _, blk := range fn.Blocks() {
		term := blk.Terminator()
		if term == nil {
			continue
		}
		switch t := term.(type) {
		case *ir.BranchInst:
			fmt.Fprintf(&b, "  %s -> %s [color=%s];\n", blk.Label(), t.Target().Label(), colorBranch)
		case *ir.CondBranchInst:
			fmt.Fprintf(&b, "  %s -> %s [color=%s];\n", blk.Label(), t.TrueTarget().Label(), colorTrue)
			fmt.Fprintf(&b, "  %s -> %s [color=%s];\n", blk.Label(), t.FalseTarget().Label(), colorFalse)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func dotEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// instructionLabel renders one instruction as a single compact line.
// It deliberately duplicates a small amount of the textual printer's
// opcode formatting rather than depending on internal/irtext, since a
// graph label only ever needs a short one-line summary, not a
// reparsable instruction.
func instructionLabel(inst ir.Instruction) string {
	name := ""
	if ir.HasResult(inst) {
		name = fmt.Sprintf("v%d = ", inst.DisplayIndex())
	}
	return fmt.Sprintf("%s%s %s", name, inst.Opcode().String(), operandSummary(inst))
}

func operandSummary(inst ir.Instruction) string {
	var parts []string
	for i := 0; i < inst.OperandCount(); i++ {
		parts = append(parts, operandName(inst.Operand(i)))
	}
	return strings.Join(parts, ", ")
}

func operandName(v ir.Value) string {
	switch vv := v.(type) {
	case *ir.ConstantValue:
		return fmt.Sprintf("%d", vv.Uint64())
	case *ir.Block:
		return vv.Label()
	case *ir.Function:
		return vv.Name()
	default:
		return fmt.Sprintf("v%d", v.DisplayIndex())
	}
}

// Render runs `dot -T<format> -o outputPath` over fn's dot source,
// using whichever `dot` binary is found on PATH. format is the file
// extension Graphviz should produce ("svg", "png", ...).
func Render(fn *ir.Function, format, outputPath string) error {
	ir.AssignDisplayIndices(fn)
	src := Source(fn)

	path, err := exec.LookPath("dot")
	if err != nil {
		return fmt.Errorf("graphdump: dot not found on PATH: %w", err)
	}

	cmd := exec.Command(path, "-T"+format, "-o", outputPath)
	cmd.Stdin = strings.NewReader(src)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("graphdump: dot failed: %w: %s", err, out)
	}
	return nil
}
