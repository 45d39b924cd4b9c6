// SPDX-License-Identifier: Apache-2.0
package ir

// UnaryInst is Neg or Not: one operand, result type equals operand type.
type UnaryInst struct{ instrCommon }

func NewUnary(ctx *Context, op Opcode, x Value) *UnaryInst {
	if !op.IsUnary() {
		invariantViolation("NewUnary: opcode %s is not unary", op)
	}
	i := &UnaryInst{instrCommon: newInstrCommon(ctx, op, x.Type())}
	i.initOperands(i, 1)
	i.SetOperand(0, x)
	return i
}

func (i *UnaryInst) X() Value { return i.Operand(0) }

func (i *UnaryInst) Clone() Instruction { return NewUnary(i.ctx, i.op, i.X()) }

// BinaryInst is one of Add/Sub/Mul/DivU/DivS/ModU/ModS/Shr/Shl/Sar/And/
// Or/Xor. Both operands and the result share one integer type.
type BinaryInst struct{ instrCommon }

func NewBinary(ctx *Context, op Opcode, lhs, rhs Value) *BinaryInst {
	if !op.IsBinary() {
		invariantViolation("NewBinary: opcode %s is not binary", op)
	}
	i := &BinaryInst{instrCommon: newInstrCommon(ctx, op, lhs.Type())}
	i.initOperands(i, 2)
	i.SetOperand(0, lhs)
	i.SetOperand(1, rhs)
	return i
}

func (i *BinaryInst) LHS() Value { return i.Operand(0) }
func (i *BinaryInst) RHS() Value { return i.Operand(1) }

func (i *BinaryInst) Clone() Instruction { return NewBinary(i.ctx, i.op, i.LHS(), i.RHS()) }

// IntCompareInst compares two equally typed integer or pointer operands
// and produces i1.
type IntCompareInst struct{ instrCommon }

func NewIntCompare(ctx *Context, predicate Opcode, lhs, rhs Value) *IntCompareInst {
	if !predicate.IsCompare() {
		invariantViolation("NewIntCompare: opcode %s is not a compare predicate", predicate)
	}
	i := &IntCompareInst{instrCommon: newInstrCommon(ctx, predicate, ctx.I1())}
	i.initOperands(i, 2)
	i.SetOperand(0, lhs)
	i.SetOperand(1, rhs)
	return i
}

func (i *IntCompareInst) LHS() Value       { return i.Operand(0) }
func (i *IntCompareInst) RHS() Value       { return i.Operand(1) }
func (i *IntCompareInst) Predicate() Opcode { return i.op }

func (i *IntCompareInst) Clone() Instruction {
	return NewIntCompare(i.ctx, i.op, i.LHS(), i.RHS())
}

// LoadInst reads the value at a pointer operand.
type LoadInst struct{ instrCommon }

func NewLoad(ctx *Context, ptr Value) *LoadInst {
	pt, ok := ptr.Type().(*PointerType)
	if !ok {
		invariantViolation("NewLoad: operand is not a pointer type")
	}
	i := &LoadInst{instrCommon: newInstrCommon(ctx, OpLoad, pt.Deref())}
	i.initOperands(i, 1)
	i.SetOperand(0, ptr)
	return i
}

func (i *LoadInst) Pointer() Value { return i.Operand(0) }

func (i *LoadInst) Clone() Instruction { return NewLoad(i.ctx, i.Pointer()) }

// StoreInst writes a value to a pointer operand. Void.
type StoreInst struct{ instrCommon }

func NewStore(ctx *Context, ptr, value Value) *StoreInst {
	i := &StoreInst{instrCommon: newInstrCommon(ctx, OpStore, nil)}
	i.initOperands(i, 2)
	i.SetOperand(0, ptr)
	i.SetOperand(1, value)
	return i
}

func (i *StoreInst) Pointer() Value { return i.Operand(0) }
func (i *StoreInst) Value_() Value  { return i.Operand(1) }

func (i *StoreInst) Clone() Instruction { return NewStore(i.ctx, i.Pointer(), i.Value_()) }

// CallInst invokes a function value with a list of arguments. The
// callee itself is a tracked operand (index 0) so it participates in
// the use graph like any other Function reference.
type CallInst struct{ instrCommon }

func NewCall(ctx *Context, callee *Function, args []Value) *CallInst {
	i := &CallInst{instrCommon: newInstrCommon(ctx, OpCall, callee.ReturnType())}
	i.initOperands(i, 1+len(args))
	i.SetOperand(0, callee)
	for idx, a := range args {
		i.SetOperand(1+idx, a)
	}
	return i
}

func (i *CallInst) Callee() *Function {
	return i.Operand(0).(*Function)
}

func (i *CallInst) Args() []Value {
	args := make([]Value, i.OperandCount()-1)
	for idx := range args {
		args[idx] = i.Operand(idx + 1)
	}
	return args
}

func (i *CallInst) Clone() Instruction { return NewCall(i.ctx, i.Callee(), i.Args()) }

// BranchInst is an unconditional jump. Void.
type BranchInst struct{ instrCommon }

func NewBranch(ctx *Context, target *Block) *BranchInst {
	i := &BranchInst{instrCommon: newInstrCommon(ctx, OpBranch, nil)}
	i.initOperands(i, 1)
	i.SetOperand(0, target)
	return i
}

func (i *BranchInst) Target() *Block { return i.Operand(0).(*Block) }

func (i *BranchInst) SetTarget(b *Block) { i.SetOperand(0, b) }

func (i *BranchInst) Clone() Instruction { return NewBranch(i.ctx, i.Target()) }

// CondBranchInst branches to one of two blocks based on an i1 condition.
// Void.
type CondBranchInst struct{ instrCommon }

func NewCondBranch(ctx *Context, cond Value, trueTarget, falseTarget *Block) *CondBranchInst {
	i := &CondBranchInst{instrCommon: newInstrCommon(ctx, OpCondBranch, nil)}
	i.initOperands(i, 3)
	i.SetOperand(0, cond)
	i.SetOperand(1, trueTarget)
	i.SetOperand(2, falseTarget)
	return i
}

func (i *CondBranchInst) Condition() Value   { return i.Operand(0) }
func (i *CondBranchInst) TrueTarget() *Block { return i.Operand(1).(*Block) }
func (i *CondBranchInst) FalseTarget() *Block { return i.Operand(2).(*Block) }

func (i *CondBranchInst) SetTrueTarget(b *Block)  { i.SetOperand(1, b) }
func (i *CondBranchInst) SetFalseTarget(b *Block) { i.SetOperand(2, b) }

func (i *CondBranchInst) Clone() Instruction {
	return NewCondBranch(i.ctx, i.Condition(), i.TrueTarget(), i.FalseTarget())
}

// StackAllocInst reserves stack storage for `size` contiguous elements
// of elemType and returns a pointer to it. Size is a compile-time
// literal, not an operand.
type StackAllocInst struct {
	instrCommon
	elemType Type
	size     int
}

func NewStackAlloc(ctx *Context, elemType Type, size int) *StackAllocInst {
	if size <= 0 {
		invariantViolation("NewStackAlloc: size must be positive, got %d", size)
	}
	i := &StackAllocInst{
		instrCommon: newInstrCommon(ctx, OpStackAlloc, ctx.Ref(elemType, 1)),
		elemType:    elemType,
		size:        size,
	}
	i.initOperands(i, 0)
	return i
}

func (i *StackAllocInst) ElemType() Type { return i.elemType }
func (i *StackAllocInst) Size() int      { return i.size }
func (i *StackAllocInst) IsScalar() bool { return i.size == 1 }

func (i *StackAllocInst) Clone() Instruction { return NewStackAlloc(i.ctx, i.elemType, i.size) }

// RetInst returns from the function, optionally with a value. Void.
type RetInst struct{ instrCommon }

func NewRet(ctx *Context, value Value) *RetInst {
	i := &RetInst{instrCommon: newInstrCommon(ctx, OpRet, nil)}
	if value != nil {
		i.initOperands(i, 1)
		i.SetOperand(0, value)
	} else {
		i.initOperands(i, 0)
	}
	return i
}

// Value returns the returned value, or nil for `ret void`.
func (i *RetInst) Value() Value {
	if i.OperandCount() == 0 {
		return nil
	}
	return i.Operand(0)
}

func (i *RetInst) Clone() Instruction { return NewRet(i.ctx, i.Value()) }

// OffsetInst adds an integer index to a pointer, producing a pointer of
// the same type (pointer arithmetic, no implicit scaling).
type OffsetInst struct{ instrCommon }

func NewOffset(ctx *Context, base, index Value) *OffsetInst {
	if _, ok := base.Type().(*PointerType); !ok {
		invariantViolation("NewOffset: base is not a pointer type")
	}
	i := &OffsetInst{instrCommon: newInstrCommon(ctx, OpOffset, base.Type())}
	i.initOperands(i, 2)
	i.SetOperand(0, base)
	i.SetOperand(1, index)
	return i
}

func (i *OffsetInst) Base() Value  { return i.Operand(0) }
func (i *OffsetInst) Index() Value { return i.Operand(1) }

func (i *OffsetInst) Clone() Instruction { return NewOffset(i.ctx, i.Base(), i.Index()) }

// CastInst is one of ZeroExtend/SignExtend/Truncate/Bitcast, converting
// a single operand to an explicit destination type.
type CastInst struct{ instrCommon }

func NewCast(ctx *Context, op Opcode, src Value, dstType Type) *CastInst {
	if !op.IsCast() {
		invariantViolation("NewCast: opcode %s is not a cast", op)
	}
	i := &CastInst{instrCommon: newInstrCommon(ctx, op, dstType)}
	i.initOperands(i, 1)
	i.SetOperand(0, src)
	return i
}

func (i *CastInst) Src() Value { return i.Operand(0) }

func (i *CastInst) Clone() Instruction { return NewCast(i.ctx, i.op, i.Src(), i.typ) }

// SelectInst chooses between two equally typed operands based on an i1
// condition.
type SelectInst struct{ instrCommon }

func NewSelect(ctx *Context, cond, ifTrue, ifFalse Value) *SelectInst {
	i := &SelectInst{instrCommon: newInstrCommon(ctx, OpSelect, ifTrue.Type())}
	i.initOperands(i, 3)
	i.SetOperand(0, cond)
	i.SetOperand(1, ifTrue)
	i.SetOperand(2, ifFalse)
	return i
}

func (i *SelectInst) Condition() Value { return i.Operand(0) }
func (i *SelectInst) IfTrue() Value    { return i.Operand(1) }
func (i *SelectInst) IfFalse() Value   { return i.Operand(2) }

func (i *SelectInst) Clone() Instruction {
	return NewSelect(i.ctx, i.Condition(), i.IfTrue(), i.IfFalse())
}

// PhiInst selects among incoming values, one per predecessor block.
// Operands are stored as interleaved (block, value) pairs: operand 2k is
// the block, operand 2k+1 is the value coming from it.
type PhiInst struct{ instrCommon }

func NewPhi(ctx *Context, typ Type) *PhiInst {
	i := &PhiInst{instrCommon: newInstrCommon(ctx, OpPhi, typ)}
	i.initOperands(i, 0)
	return i
}

// IncomingCount returns the number of (block, value) pairs.
func (i *PhiInst) IncomingCount() int { return i.OperandCount() / 2 }

func (i *PhiInst) IncomingBlock(idx int) *Block {
	return i.Operand(2 * idx).(*Block)
}

func (i *PhiInst) IncomingValue(idx int) Value {
	return i.Operand(2*idx + 1)
}

// ValueForBlock returns the incoming value for pred, if present.
func (i *PhiInst) ValueForBlock(pred *Block) (Value, bool) {
	for k := 0; k < i.IncomingCount(); k++ {
		if i.IncomingBlock(k) == pred {
			return i.IncomingValue(k), true
		}
	}
	return nil, false
}

// IncomingPair is one (block, value) pair of a Phi, as returned by
// Incoming() for callers (mostly tests) that want to snapshot the whole
// list rather than index it pair by pair.
type IncomingPair struct {
	Block *Block
	Value Value
}

// Incoming returns every (block, value) pair of the Phi, in operand
// order.
func (i *PhiInst) Incoming() []IncomingPair {
	pairs := make([]IncomingPair, i.IncomingCount())
	for k := range pairs {
		pairs[k] = IncomingPair{Block: i.IncomingBlock(k), Value: i.IncomingValue(k)}
	}
	return pairs
}

// AddIncoming grows the Phi by one (block, value) pair.
func (i *PhiInst) AddIncoming(block *Block, value Value) {
	i.appendOperand(i, block)
	i.appendOperand(i, value)
}

// RemoveIncoming deletes the pair belonging to pred, if present,
// shifting later pairs down and reindexing their operand positions.
func (i *PhiInst) RemoveIncoming(pred *Block) {
	for k := 0; k < i.IncomingCount(); k++ {
		if i.IncomingBlock(k) == pred {
			i.removeOperandAt(2 * k)
			i.removeOperandAt(2 * k)
			return
		}
	}
}

// SetIncomingValue rewrites the value for an existing incoming block.
func (i *PhiInst) SetIncomingValue(pred *Block, value Value) {
	for k := 0; k < i.IncomingCount(); k++ {
		if i.IncomingBlock(k) == pred {
			i.SetOperand(2*k+1, value)
			return
		}
	}
	invariantViolation("PhiInst.SetIncomingValue: %s is not an incoming block", pred.Label())
}

func (i *PhiInst) Clone() Instruction {
	c := NewPhi(i.ctx, i.typ)
	for k := 0; k < i.IncomingCount(); k++ {
		c.AddIncoming(i.IncomingBlock(k), i.IncomingValue(k))
	}
	return c
}
