// SPDX-License-Identifier: Apache-2.0
package ir

import "turbine/internal/diag"

// Validate checks fn against every structural invariant spec §3 and §3.4
// impose: each block is non-empty and ends in exactly one terminator that
// appears nowhere else in the block; every operand is defined by an
// instruction that dominates its use (or is a block argument/Phi
// incoming, which is exempt); every opcode's operand and result types
// agree with its type-checking rule; every Phi lists exactly one
// incoming pair per predecessor, no more and no fewer. Findings are
// appended to bag; fn is left unmodified regardless of outcome.
func Validate(fn *Function, bag *diag.Bag) {
	if fn.Extern() {
		return
	}
	v := &validator{fn: fn, bag: bag}
	v.dom = computeDominance(fn)
	v.checkBlockShapes()
	for _, b := range fn.Blocks() {
		if v.dom.isDead(b) {
			continue
		}
		for _, inst := range b.Instructions() {
			v.checkOperandsDefined(b, inst)
			v.checkOpcodeTypes(b, inst)
		}
		v.checkPhiCompleteness(b)
	}
}

type validator struct {
	fn  *Function
	bag *diag.Bag
	dom *dominance
}

func (v *validator) checkBlockShapes() {
	entry := v.fn.Entry()
	for _, b := range v.fn.Blocks() {
		if v.dom.isDead(b) {
			continue
		}
		if b == entry && len(b.Predecessors()) != 0 {
			v.bag.Errorf(v.fn.Name(), b.Label(), "entry block must have no predecessors")
		}
		if b.Empty() {
			v.bag.Errorf(v.fn.Name(), b.Label(), "block is empty")
			continue
		}
		for idx, inst := range b.Instructions() {
			last := idx == len(b.Instructions())-1
			if inst.IsTerminator() && !last {
				v.bag.Errorf(v.fn.Name(), b.Label(), "terminator %s is not the last instruction", inst.Opcode())
			}
			if !inst.IsTerminator() && last {
				v.bag.Errorf(v.fn.Name(), b.Label(), "block does not end in a terminator")
			}
		}
	}
}

// checkOperandsDefined verifies every non-block, non-function, non-Phi
// operand of inst is defined by an instruction that dominates inst's
// block (or by a parameter/constant/undef, always valid), and that a
// value's block reference operands (Branch/CondBranch targets, Phi
// incoming blocks) name a real block of the same function.
func (v *validator) checkOperandsDefined(b *Block, inst Instruction) {
	if phi, ok := inst.(*PhiInst); ok {
		for k := 0; k < phi.IncomingCount(); k++ {
			pred := phi.IncomingBlock(k)
			if pred.Function() != v.fn {
				v.bag.Errorf(v.fn.Name(), b.Label(), "phi incoming block %s is not part of this function", pred.Label())
			}
		}
		return
	}
	for i := 0; i < inst.OperandCount(); i++ {
		operand := inst.Operand(i)
		switch op := operand.(type) {
		case *Block:
			if op.Function() != v.fn {
				v.bag.Errorf(v.fn.Name(), b.Label(), "operand %d references a block outside this function", i)
			}
		case Instruction:
			defBlock := op.Block()
			if defBlock == nil {
				v.bag.Errorf(v.fn.Name(), b.Label(), "operand %d is an instruction detached from any block", i)
				continue
			}
			if !v.dom.dominates(defBlock, b) && !(defBlock == b && v.definedBefore(op, inst)) {
				v.bag.Errorf(v.fn.Name(), b.Label(), "operand %d used before its definition dominates this use", i)
			}
		}
	}
}

func (v *validator) definedBefore(def, use Instruction) bool {
	for _, inst := range def.Block().Instructions() {
		if inst == def {
			return true
		}
		if inst == use {
			return false
		}
	}
	return false
}

func (v *validator) checkPhiCompleteness(b *Block) {
	preds := b.Predecessors()
	for _, inst := range b.Instructions() {
		phi, ok := inst.(*PhiInst)
		if !ok {
			continue
		}
		if phi.IncomingCount() != len(preds) {
			v.bag.Errorf(v.fn.Name(), b.Label(), "phi has %d incoming pairs but block has %d predecessors", phi.IncomingCount(), len(preds))
			continue
		}
		for _, pred := range preds {
			if _, ok := phi.ValueForBlock(pred); !ok {
				v.bag.Errorf(v.fn.Name(), b.Label(), "phi has no incoming value for predecessor %s", pred.Label())
			}
		}
	}
}

// checkOpcodeTypes enforces the per-opcode type-checking rule from
// spec §3.4.
func (v *validator) checkOpcodeTypes(b *Block, inst Instruction) {
	name := v.fn.Name()
	errf := func(format string, args ...any) { v.bag.Errorf(name, b.Label(), format, args...) }

	switch i := inst.(type) {
	case *UnaryInst:
		if !IsInteger(i.X().Type()) {
			errf("%s: operand must be an integer type, got %s", i.Opcode(), i.X().Type())
		}
	case *BinaryInst:
		if !IsInteger(i.LHS().Type()) || i.LHS().Type() != i.RHS().Type() {
			errf("%s: operands must share one integer type", i.Opcode())
		}
	case *IntCompareInst:
		lt, rt := i.LHS().Type(), i.RHS().Type()
		if lt != rt || (!IsInteger(lt) && !IsPointer(lt)) {
			errf("%s: operands must share one integer or pointer type", i.Opcode())
		}
	case *LoadInst:
		if !IsPointer(i.Pointer().Type()) {
			errf("load: operand must be a pointer type")
		}
	case *StoreInst:
		pt, ok := i.Pointer().Type().(*PointerType)
		if !ok {
			errf("store: first operand must be a pointer type")
		} else if pt.Deref() != i.Value_().Type() {
			errf("store: value type does not match pointee type")
		}
	case *CallInst:
		callee := i.Callee()
		args := i.Args()
		params := callee.Params()
		if len(args) != len(params) {
			errf("call: %d arguments but callee %s expects %d", len(args), callee.Name(), len(params))
			break
		}
		for idx, a := range args {
			if a.Type() != params[idx].Type() {
				errf("call: argument %d type mismatch with callee %s parameter", idx, callee.Name())
			}
		}
	case *CondBranchInst:
		if !isI1(i.Condition().Type()) {
			errf("bcond: condition must be i1")
		}
	case *StackAllocInst:
		if i.Size() <= 0 {
			errf("stackalloc: size must be positive")
		}
	case *RetInst:
		rt := v.fn.ReturnType()
		if IsVoid(rt) {
			if i.Value() != nil {
				errf("ret: function %s returns void but a value was supplied", v.fn.Name())
			}
		} else {
			if i.Value() == nil {
				errf("ret: function %s must return a value of type %s", v.fn.Name(), rt)
			} else if i.Value().Type() != rt {
				errf("ret: returned type does not match function's declared return type %s", rt)
			}
		}
	case *OffsetInst:
		if !IsInteger(i.Index().Type()) {
			errf("offset: index must be an integer type")
		}
	case *CastInst:
		checkCastTypes(i, errf)
	case *SelectInst:
		if !isI1(i.Condition().Type()) {
			errf("select: condition must be i1")
		}
		if i.IfTrue().Type() != i.IfFalse().Type() {
			errf("select: both arms must share one type")
		}
	case *PhiInst:
		for k := 0; k < i.IncomingCount(); k++ {
			if i.IncomingValue(k).Type() != i.Type() {
				errf("phi: incoming value %d does not match the phi's declared type", k)
			}
		}
	}
}

func isI1(t Type) bool {
	it, ok := t.(*IntType)
	return ok && it.Bits() == 1
}

func checkCastTypes(i *CastInst, errf func(string, ...any)) {
	src := i.Src().Type()
	dst := i.typ
	switch i.Opcode() {
	case OpZeroExtend, OpSignExtend:
		if !IsInteger(src) || !IsInteger(dst) || BitSize(dst) <= BitSize(src) {
			errf("%s: destination must be a strictly wider integer type than the source", i.Opcode())
		}
	case OpTruncate:
		if !IsInteger(src) || !IsInteger(dst) || BitSize(dst) >= BitSize(src) {
			errf("trunc: destination must be a strictly narrower integer type than the source")
		}
	case OpBitcast:
		if BitSize(src) != BitSize(dst) {
			errf("bitcast: source and destination must share one bit width")
		}
	}
}

// dominance is a simple worklist dominator computation, used only by the
// validator; internal/analysis carries the Cooper-Harvey-Kennedy
// implementation passes rely on for speed.
type dominance struct {
	fn      *Function
	idom    map[*Block]*Block
	order   []*Block
	indexOf map[*Block]int
}

func computeDominance(fn *Function) *dominance {
	blocks := fn.Blocks()
	idx := make(map[*Block]int, len(blocks))
	for i, b := range blocks {
		idx[b] = i
	}
	entry := fn.Entry()

	dom := make(map[*Block]*Block, len(blocks))
	dom[entry] = entry
	changed := true
	for changed {
		changed = false
		for _, b := range blocks {
			if b == entry {
				continue
			}
			var newIdom *Block
			for _, p := range b.Predecessors() {
				if dom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(dom, idx, newIdom, p)
			}
			if newIdom != nil && dom[b] != newIdom {
				dom[b] = newIdom
				changed = true
			}
		}
	}
	return &dominance{fn: fn, idom: dom, order: blocks, indexOf: idx}
}

func intersect(dom map[*Block]*Block, idx map[*Block]int, a, b *Block) *Block {
	for a != b {
		for idx[a] > idx[b] {
			a = dom[a]
		}
		for idx[b] > idx[a] {
			b = dom[b]
		}
	}
	return a
}

// isDead reports whether b is absent from the dominator map: unreachable
// from entry, and therefore exempt from every other structural check per
// spec §4.4 ("Dead blocks (not in the dominator map, non-entry) are
// skipped"). The entry block is never dead.
func (d *dominance) isDead(b *Block) bool {
	if b == d.fn.Entry() {
		return false
	}
	_, ok := d.idom[b]
	return !ok
}

func (d *dominance) dominates(a, b *Block) bool {
	if a == b {
		return true
	}
	cur := d.idom[b]
	for cur != nil {
		if cur == a {
			return true
		}
		if cur == d.fn.Entry() {
			break
		}
		next := d.idom[cur]
		if next == cur {
			break
		}
		cur = next
	}
	return false
}
