// SPDX-License-Identifier: Apache-2.0
package ir

// InsertPolicy selects where an Inserter places the next instruction.
type InsertPolicy int

const (
	InsertBlockFront InsertPolicy = iota
	InsertBlockBack
	InsertBeforeInstruction
	InsertAfterInstruction
)

// Inserter is a stateful cursor remembering one of four insertion
// policies. Passes build instructions through it instead of splicing
// block slices by hand. With Follow enabled, the cursor advances to
// each newly inserted instruction, so a sequence of builder calls lays
// instructions out in the order they were issued.
type Inserter struct {
	policy InsertPolicy
	block  *Block
	mark   Instruction
	follow bool
}

// NewInserter returns a cursor with no target block. Inserter has no
// setters for its target, so this cursor cannot insert anything; use
// AtBlockFront, AtBlockBack, Before or After for a positioned cursor.
func NewInserter() *Inserter { return &Inserter{} }

// AtBlockFront positions the cursor to insert at the start of b.
func AtBlockFront(b *Block) *Inserter { return &Inserter{policy: InsertBlockFront, block: b} }

// AtBlockBack positions the cursor to insert just before b's terminator
// (or at the end, if b has none yet).
func AtBlockBack(b *Block) *Inserter { return &Inserter{policy: InsertBlockBack, block: b} }

// Before positions the cursor to insert immediately before mark.
func Before(mark Instruction) *Inserter {
	return &Inserter{policy: InsertBeforeInstruction, mark: mark}
}

// After positions the cursor to insert immediately after mark.
func After(mark Instruction) *Inserter {
	return &Inserter{policy: InsertAfterInstruction, mark: mark}
}

// WithFollow enables or disables follow mode and returns the cursor for
// chaining.
func (ins *Inserter) WithFollow(follow bool) *Inserter {
	ins.follow = follow
	return ins
}

func (ins *Inserter) insert(inst Instruction) Instruction {
	switch ins.policy {
	case InsertBlockFront:
		ins.block.PushFront(inst)
	case InsertBlockBack:
		ins.block.PushBack(inst)
	case InsertBeforeInstruction:
		ins.mark.Block().InsertBefore(ins.mark, inst)
	case InsertAfterInstruction:
		ins.mark.Block().InsertAfter(ins.mark, inst)
	default:
		invariantViolation("Inserter: unknown policy %d", ins.policy)
	}
	if ins.follow {
		ins.policy = InsertAfterInstruction
		ins.mark = inst
	}
	return inst
}

func (ins *Inserter) Neg(ctx *Context, x Value) *UnaryInst { return ins.unary(ctx, OpNeg, x) }
func (ins *Inserter) Not(ctx *Context, x Value) *UnaryInst { return ins.unary(ctx, OpNot, x) }

func (ins *Inserter) unary(ctx *Context, op Opcode, x Value) *UnaryInst {
	i := NewUnary(ctx, op, x)
	ins.insert(i)
	return i
}

func (ins *Inserter) binary(ctx *Context, op Opcode, lhs, rhs Value) *BinaryInst {
	i := NewBinary(ctx, op, lhs, rhs)
	ins.insert(i)
	return i
}

func (ins *Inserter) Add(ctx *Context, l, r Value) *BinaryInst  { return ins.binary(ctx, OpAdd, l, r) }
func (ins *Inserter) Sub(ctx *Context, l, r Value) *BinaryInst  { return ins.binary(ctx, OpSub, l, r) }
func (ins *Inserter) Mul(ctx *Context, l, r Value) *BinaryInst  { return ins.binary(ctx, OpMul, l, r) }
func (ins *Inserter) DivU(ctx *Context, l, r Value) *BinaryInst { return ins.binary(ctx, OpDivU, l, r) }
func (ins *Inserter) DivS(ctx *Context, l, r Value) *BinaryInst { return ins.binary(ctx, OpDivS, l, r) }
func (ins *Inserter) ModU(ctx *Context, l, r Value) *BinaryInst { return ins.binary(ctx, OpModU, l, r) }
func (ins *Inserter) ModS(ctx *Context, l, r Value) *BinaryInst { return ins.binary(ctx, OpModS, l, r) }
func (ins *Inserter) Shr(ctx *Context, l, r Value) *BinaryInst  { return ins.binary(ctx, OpShr, l, r) }
func (ins *Inserter) Shl(ctx *Context, l, r Value) *BinaryInst  { return ins.binary(ctx, OpShl, l, r) }
func (ins *Inserter) Sar(ctx *Context, l, r Value) *BinaryInst  { return ins.binary(ctx, OpSar, l, r) }
func (ins *Inserter) And(ctx *Context, l, r Value) *BinaryInst  { return ins.binary(ctx, OpAnd, l, r) }
func (ins *Inserter) Or(ctx *Context, l, r Value) *BinaryInst   { return ins.binary(ctx, OpOr, l, r) }
func (ins *Inserter) Xor(ctx *Context, l, r Value) *BinaryInst  { return ins.binary(ctx, OpXor, l, r) }

func (ins *Inserter) Cmp(ctx *Context, predicate Opcode, l, r Value) *IntCompareInst {
	i := NewIntCompare(ctx, predicate, l, r)
	ins.insert(i)
	return i
}

func (ins *Inserter) Load(ctx *Context, ptr Value) *LoadInst {
	i := NewLoad(ctx, ptr)
	ins.insert(i)
	return i
}

func (ins *Inserter) Store(ctx *Context, ptr, value Value) *StoreInst {
	i := NewStore(ctx, ptr, value)
	ins.insert(i)
	return i
}

func (ins *Inserter) Call(ctx *Context, callee *Function, args []Value) *CallInst {
	i := NewCall(ctx, callee, args)
	ins.insert(i)
	return i
}

func (ins *Inserter) Branch(ctx *Context, target *Block) *BranchInst {
	i := NewBranch(ctx, target)
	ins.insert(i)
	return i
}

func (ins *Inserter) CondBranch(ctx *Context, cond Value, trueTarget, falseTarget *Block) *CondBranchInst {
	i := NewCondBranch(ctx, cond, trueTarget, falseTarget)
	ins.insert(i)
	return i
}

func (ins *Inserter) StackAlloc(ctx *Context, elemType Type, size int) *StackAllocInst {
	i := NewStackAlloc(ctx, elemType, size)
	ins.insert(i)
	return i
}

func (ins *Inserter) Ret(ctx *Context, value Value) *RetInst {
	i := NewRet(ctx, value)
	ins.insert(i)
	return i
}

func (ins *Inserter) Offset(ctx *Context, base, index Value) *OffsetInst {
	i := NewOffset(ctx, base, index)
	ins.insert(i)
	return i
}

func (ins *Inserter) cast(ctx *Context, op Opcode, src Value, dst Type) *CastInst {
	i := NewCast(ctx, op, src, dst)
	ins.insert(i)
	return i
}

func (ins *Inserter) ZeroExtend(ctx *Context, src Value, dst Type) *CastInst {
	return ins.cast(ctx, OpZeroExtend, src, dst)
}
func (ins *Inserter) SignExtend(ctx *Context, src Value, dst Type) *CastInst {
	return ins.cast(ctx, OpSignExtend, src, dst)
}
func (ins *Inserter) Truncate(ctx *Context, src Value, dst Type) *CastInst {
	return ins.cast(ctx, OpTruncate, src, dst)
}
func (ins *Inserter) Bitcast(ctx *Context, src Value, dst Type) *CastInst {
	return ins.cast(ctx, OpBitcast, src, dst)
}

func (ins *Inserter) Select(ctx *Context, cond, ifTrue, ifFalse Value) *SelectInst {
	i := NewSelect(ctx, cond, ifTrue, ifFalse)
	ins.insert(i)
	return i
}

func (ins *Inserter) Phi(ctx *Context, typ Type) *PhiInst {
	i := NewPhi(ctx, typ)
	ins.insert(i)
	return i
}
