// SPDX-License-Identifier: Apache-2.0
package ir

// Block is a maximal straight-line sequence of instructions ending in
// exactly one terminator. It is itself a Value (of BlockType) so that
// Branch/CondBranch/Phi can hold it as an operand.
type Block struct {
	baseValue
	parent       *Function
	label        string
	instructions []Instruction
}

func (b *Block) Kind() ValueKind { return ValueBlockRef }

// Label returns the block's display name: "entry" for the first block,
// "block_N" for later blocks made by AppendBlock, and whatever label
// the caller passed for blocks made by Function.InsertBlockAfter.
func (b *Block) Label() string { return b.label }

func (b *Block) SetLabel(label string) { b.label = label }

// Function returns the owning function.
func (b *Block) Function() *Function { return b.parent }

// Instructions returns the block's instruction list in definition order.
// The slice is owned by the block; callers must not mutate it directly —
// use PushBack/PushFront/InsertBefore/InsertAfter to add and
// DetachInstruction/DestroyInstruction to take out.
func (b *Block) Instructions() []Instruction { return b.instructions }

// Empty reports whether the block has no instructions at all (not even
// a terminator). A live block must never be empty.
func (b *Block) Empty() bool { return len(b.instructions) == 0 }

// Terminator returns the block's terminator instruction, or nil if the
// block is empty.
func (b *Block) Terminator() Instruction {
	if len(b.instructions) == 0 {
		return nil
	}
	last := b.instructions[len(b.instructions)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// IsEntry reports whether this is its function's entry block.
func (b *Block) IsEntry() bool {
	return b.parent != nil && len(b.parent.blocks) > 0 && b.parent.blocks[0] == b
}

// Predecessors scans every block in the owning function and returns
// those whose terminator lists b as a target. It is recomputed on every
// call; passes that need it repeatedly should cache it themselves (see
// analysis.DominatorTree, which snapshots this once per construction).
func (b *Block) Predecessors() []*Block {
	var preds []*Block
	if b.parent == nil {
		return preds
	}
	for _, other := range b.parent.blocks {
		for _, succ := range Successors(other) {
			if succ == b {
				preds = append(preds, other)
				break
			}
		}
	}
	return preds
}

// Successors returns the blocks targeted by b's terminator, in the
// positional order spec gives each terminator (Branch: one; CondBranch:
// true then false; Ret: none).
func Successors(b *Block) []*Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	switch term.Opcode() {
	case OpBranch:
		return []*Block{term.(*BranchInst).Target()}
	case OpCondBranch:
		c := term.(*CondBranchInst)
		return []*Block{c.TrueTarget(), c.FalseTarget()}
	default:
		return nil
	}
}

// indexOf returns the position of inst in the instruction list, or -1.
func (b *Block) indexOf(inst Instruction) int {
	for i, in := range b.instructions {
		if in == inst {
			return i
		}
	}
	return -1
}

// insertAt splices inst into the list at position idx (0 <= idx <=
// len). It is a programmer error to insert anything after the
// terminator.
func (b *Block) insertAt(idx int, inst Instruction) {
	if term := b.Terminator(); term != nil {
		termIdx := len(b.instructions) - 1
		if idx > termIdx {
			invariantViolation("Block.insertAt: cannot insert past the terminator of block %q", b.label)
		}
	}
	b.instructions = append(b.instructions, nil)
	copy(b.instructions[idx+1:], b.instructions[idx:])
	b.instructions[idx] = inst
	inst.setBlock(b)
	if b.parent != nil {
		b.parent.bumpGeneration()
	}
}

// remove deletes inst from the instruction list without touching its
// operands or uses; callers (DestroyInstruction) are responsible for
// clearing those first.
func (b *Block) remove(inst Instruction) {
	idx := b.indexOf(inst)
	if idx < 0 {
		invariantViolation("Block.remove: instruction not found in block %q", b.label)
	}
	b.instructions = append(b.instructions[:idx], b.instructions[idx+1:]...)
	inst.setBlock(nil)
	if b.parent != nil {
		b.parent.bumpGeneration()
	}
}

// PushBack appends inst before the terminator (or at the end if there is
// none yet).
func (b *Block) PushBack(inst Instruction) {
	idx := len(b.instructions)
	if term := b.Terminator(); term != nil {
		idx = len(b.instructions) - 1
	}
	b.insertAt(idx, inst)
}

// PushFront prepends inst at the very start of the block.
func (b *Block) PushFront(inst Instruction) {
	b.insertAt(0, inst)
}

// InsertBefore splices inst immediately before mark, which must already
// belong to this block.
func (b *Block) InsertBefore(mark, inst Instruction) {
	idx := b.indexOf(mark)
	if idx < 0 {
		invariantViolation("Block.InsertBefore: mark instruction not found in block %q", b.label)
	}
	b.insertAt(idx, inst)
}

// InsertAfter splices inst immediately after mark, which must already
// belong to this block.
func (b *Block) InsertAfter(mark, inst Instruction) {
	idx := b.indexOf(mark)
	if idx < 0 {
		invariantViolation("Block.InsertAfter: mark instruction not found in block %q", b.label)
	}
	b.insertAt(idx+1, inst)
}
