// SPDX-License-Identifier: Apache-2.0
package ir

import "strconv"

// Function owns an ordered list of blocks (entry first), a return type,
// and a fixed ordered list of typed parameters. It is itself a Value (of
// FunctionType) so Call instructions can hold their callee as a tracked
// operand. A function with no blocks is extern.
type Function struct {
	baseValue
	module     *Module
	name       string
	returnType Type
	params     []*Parameter
	blocks     []*Block
	generation int
	nextID     int
}

func (f *Function) Kind() ValueKind { return ValueFunctionRef }

// NewFunction creates a function with the given name, return type and
// parameter types/names, owned by no module yet (Module.AddFunction
// attaches it). It starts extern (no blocks).
func NewFunction(ctx *Context, name string, returnType Type, paramNames []string, paramTypes []Type) *Function {
	if len(paramNames) != len(paramTypes) {
		invariantViolation("NewFunction: %d parameter names but %d types", len(paramNames), len(paramTypes))
	}
	if returnType == nil {
		returnType = ctx.Void()
	}
	f := &Function{name: name, returnType: returnType}
	f.ctx = ctx
	f.typ = ctx.FunctionType()
	f.params = make([]*Parameter, len(paramNames))
	for i, pname := range paramNames {
		p := &Parameter{fn: f, name: pname, index: i}
		p.ctx = ctx
		p.typ = paramTypes[i]
		f.params[i] = p
	}
	return f
}

func (f *Function) Name() string       { return f.name }
func (f *Function) ReturnType() Type   { return f.returnType }
func (f *Function) Params() []*Parameter { return f.params }
func (f *Function) Blocks() []*Block   { return f.blocks }
func (f *Function) Module() *Module    { return f.module }

// Extern reports whether the function has no blocks (a declaration
// only).
func (f *Function) Extern() bool { return len(f.blocks) == 0 }

// Entry returns the function's entry block, or nil if extern.
func (f *Function) Entry() *Block {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// Generation returns a monotonically increasing stamp bumped whenever a
// block is added to or removed from the function or an instruction is
// inserted into or removed from one of its blocks. Rewriting an operand
// in place (SetOperand, ReplaceUses, a branch's target) does not bump
// it. Analyses snapshot
// it at construction and assert it is unchanged before answering a
// query (spec §5: mutating the function invalidates them).
func (f *Function) Generation() int { return f.generation }

func (f *Function) bumpGeneration() { f.generation++ }

// AppendBlock creates and appends a new, empty block to the function.
// The first block appended becomes the entry block. Labels follow
// spec's convention: "entry" for the first block, "block_N" after.
func (f *Function) AppendBlock() *Block {
	b := &Block{parent: f}
	b.ctx = f.ctx
	b.typ = f.ctx.BlockType()
	if len(f.blocks) == 0 {
		b.label = "entry"
	} else {
		b.label = "block_" + strconv.Itoa(f.nextBlockNumber())
	}
	f.blocks = append(f.blocks, b)
	f.bumpGeneration()
	return b
}

func (f *Function) nextBlockNumber() int {
	n := 0
	for _, b := range f.blocks {
		if b.label != "entry" {
			n++
		}
	}
	return n + 1
}

// InsertBlockAfter splices a new block into the function's block list
// immediately after mark, without relabeling existing blocks. Used by
// analyses that need to materialize a preheader, dedicated exit, or
// rotation block at a specific position.
func (f *Function) InsertBlockAfter(mark *Block, label string) *Block {
	idx := -1
	for i, b := range f.blocks {
		if b == mark {
			idx = i
			break
		}
	}
	if idx < 0 {
		invariantViolation("InsertBlockAfter: mark block not found in function %q", f.name)
	}
	b := &Block{parent: f, label: label}
	b.ctx = f.ctx
	b.typ = f.ctx.BlockType()
	f.blocks = append(f.blocks, nil)
	copy(f.blocks[idx+2:], f.blocks[idx+1:])
	f.blocks[idx+1] = b
	f.bumpGeneration()
	return b
}

// removeBlock deletes b from the function's block list. The caller
// (DestroyBlock) must already have emptied it and verified it has no
// users.
func (f *Function) removeBlock(b *Block) {
	idx := -1
	for i, other := range f.blocks {
		if other == b {
			idx = i
			break
		}
	}
	if idx < 0 {
		invariantViolation("removeBlock: block not found in function %q", f.name)
	}
	f.blocks = append(f.blocks[:idx], f.blocks[idx+1:]...)
	f.bumpGeneration()
}
