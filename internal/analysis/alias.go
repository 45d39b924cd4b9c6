// SPDX-License-Identifier: Apache-2.0
package analysis

import "turbine/internal/ir"

// Aliasing is the three-valued answer every pointer query in this
// package returns: two pointers either never refer to overlapping
// memory, might (conservatively), or provably do.
type Aliasing int

const (
	AliasNever Aliasing = iota
	AliasMay
	AliasAlways
)

// AccessType narrows can_instruction_access_pointer to loads, stores, or
// either.
type AccessType int

const (
	AccessLoad AccessType = iota
	AccessStore
	AccessAll
)

type constantOffset struct {
	base   ir.Value
	offset int64
}

// PointerAliasing answers alias queries for one function in three
// passes over its reachable instructions: first a backward safety pass
// (does a pointer only ever escape through uses this analysis
// understands), then a forward pass computing each pointer's origin
// value and, for Offset chains with a constant index, its constant
// displacement from that origin.
type PointerAliasing struct {
	fn         *ir.Function
	generation int

	origin           map[ir.Value]ir.Value
	stackallocSafety map[ir.Value]bool
	constOffset      map[ir.Value]constantOffset
}

// BuildPointerAliasing analyzes fn's current instruction set.
func BuildPointerAliasing(fn *ir.Function) *PointerAliasing {
	pa := &PointerAliasing{
		fn:               fn,
		generation:       fn.Generation(),
		origin:           make(map[ir.Value]ir.Value),
		stackallocSafety: make(map[ir.Value]bool),
		constOffset:      make(map[ir.Value]constantOffset),
	}

	order := reachablePostorderBlocks(fn.Entry())

	safePointers := make(map[ir.Value]bool)
	for i := len(order) - 1; i >= 0; i-- {
		b := order[i]
		insts := b.Instructions()
		for j := len(insts) - 1; j >= 0; j-- {
			inst := insts[j]
			if !ir.IsPointer(inst.Type()) {
				continue
			}
			safePointers[inst] = isPointerSafelyUsed(inst, safePointers)
		}
	}

	for _, b := range order {
		for _, inst := range b.Instructions() {
			if !ir.IsPointer(inst.Type()) {
				continue
			}
			pa.origin[inst] = computeOrigin(inst, pa.origin)
			if sa, ok := inst.(*ir.StackAllocInst); ok {
				pa.stackallocSafety[sa] = safePointers[sa]
			}
			if off, ok := inst.(*ir.OffsetInst); ok {
				pa.processOffset(off)
			}
		}
	}

	return pa
}

func reachablePostorderBlocks(entry *ir.Block) []*ir.Block {
	// DFS preorder is enough here: the safety pass below only needs
	// "process users before the values they use," which the reversed
	// postorder of an acyclic-per-block instruction order already gives
	// within a block; across blocks a plain reachability order suffices
	// because the safety pass is a local (intra-block) check at its
	// core, re-derived per instruction from already-computed predicates.
	visited := make(map[*ir.Block]bool)
	var order []*ir.Block
	var visit func(b *ir.Block)
	visit = func(b *ir.Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		order = append(order, b)
		for _, s := range ir.Successors(b) {
			visit(s)
		}
	}
	visit(entry)
	return order
}

// isPointerSafelyUsed reports whether every user of ptr is one this
// analysis fully understands the effect of (so the pointer cannot
// "escape" into unanalyzed code): a load, a ret, a compare, a store
// that targets (not stores) it, or a safely-used Offset/Phi derived
// from it.
func isPointerSafelyUsed(ptr ir.Instruction, safePointers map[ir.Value]bool) bool {
	safe := true
	ptr.Uses().ForEachSafe(func(u *ir.Use) {
		if !safe {
			return
		}
		switch user := u.User().(type) {
		case *ir.LoadInst, *ir.RetInst, *ir.IntCompareInst:
			// always safe
		case *ir.StoreInst:
			if user.Pointer() != ir.Value(ptr) || user.Value_() == ir.Value(ptr) {
				safe = false
			}
		case *ir.OffsetInst:
			if user.Base() != ir.Value(ptr) || !safePointers[user] {
				safe = false
			}
		case *ir.PhiInst:
			if !safePointers[user] {
				safe = false
			}
		default:
			safe = false
		}
	})
	return safe
}

// computeOrigin traces inst back to the value that "created" its
// pointer identity: a StackAlloc, a Load, a Call, or a Cast result (cast
// pointers are treated as opaque, new origins, since a bitcast can
// reinterpret unrelated memory). Offset forwards its base's origin;
// Select/Phi forward a common origin if every incoming side agrees, and
// otherwise are their own origin.
func computeOrigin(inst ir.Instruction, origin map[ir.Value]ir.Value) ir.Value {
	switch v := inst.(type) {
	case *ir.OffsetInst:
		return resolveOrigin(v.Base(), origin)
	case *ir.SelectInst:
		t := resolveOrigin(v.IfTrue(), origin)
		f := resolveOrigin(v.IfFalse(), origin)
		if t == f {
			return t
		}
		return inst
	case *ir.PhiInst:
		var common ir.Value
		for k := 0; k < v.IncomingCount(); k++ {
			o := resolveOrigin(v.IncomingValue(k), origin)
			if o == nil {
				return inst
			}
			if common == nil {
				common = o
			} else if common != o {
				return inst
			}
		}
		if common != nil {
			return common
		}
		return inst
	default:
		return inst
	}
}

// resolveOrigin looks up the origin for an already-processed value,
// falling through to the value itself for constants/parameters/undef
// which are their own origin.
func resolveOrigin(v ir.Value, origin map[ir.Value]ir.Value) ir.Value {
	if inst, ok := v.(ir.Instruction); ok {
		if o, ok := origin[inst]; ok {
			return o
		}
		return nil
	}
	return v
}

// processOffset records a constant displacement from off's ultimate base
// when its index is a compile-time constant, chaining through any prior
// constant offset already computed for that base.
func (pa *PointerAliasing) processOffset(off *ir.OffsetInst) {
	base := off.Base()
	index := off.Index()

	c, ok := index.(*ir.ConstantValue)
	if !ok {
		return
	}
	delta := int64(c.Uint64())
	result := constantOffset{base: base, offset: delta}
	if baseInst, ok := base.(ir.Instruction); ok {
		if parent, ok := pa.constOffset[baseInst]; ok {
			result = constantOffset{base: parent.base, offset: parent.offset + delta}
		}
	}
	pa.constOffset[off] = result
}

func (pa *PointerAliasing) assertFresh() {
	if pa.fn.Generation() != pa.generation {
		invariantViolation("PointerAliasing: used after function %q was mutated", pa.fn.Name())
	}
}

// CanAlias reports whether v1 and v2 (both pointers) can refer to
// overlapping memory.
func (pa *PointerAliasing) CanAlias(v1, v2 ir.Value) Aliasing {
	pa.assertFresh()
	if _, ok := v1.(*ir.UndefValue); ok {
		return AliasNever
	}
	if _, ok := v2.(*ir.UndefValue); ok {
		return AliasNever
	}
	if v1 == v2 {
		return AliasAlways
	}

	o1 := pa.resolve(v1)
	o2 := pa.resolve(v2)

	if _, ok := o1.(*ir.UndefValue); ok {
		return AliasNever
	}
	if _, ok := o2.(*ir.UndefValue); ok {
		return AliasNever
	}
	if o1 == o2 {
		if c1, ok := pa.constOffset[v1]; ok {
			if c2, ok := pa.constOffset[v2]; ok && c1.base == c2.base {
				if c1.offset == c2.offset {
					return AliasAlways
				}
				return AliasNever
			}
		}
		return AliasMay
	}

	s1, ok1 := pa.stackallocSafety[o1]
	s2, ok2 := pa.stackallocSafety[o2]
	switch {
	case !ok1 && !ok2:
		return AliasMay
	case ok1 && ok2:
		return AliasNever
	case ok1:
		if s1 {
			return AliasNever
		}
		return AliasMay
	default:
		if s2 {
			return AliasNever
		}
		return AliasMay
	}
}

func (pa *PointerAliasing) resolve(v ir.Value) ir.Value {
	if inst, ok := v.(ir.Instruction); ok {
		if o, ok := pa.origin[inst]; ok {
			return o
		}
	}
	return v
}

// CanInstructionAccessPointer reports whether inst might read or write
// (per accessType) through pointer.
func (pa *PointerAliasing) CanInstructionAccessPointer(inst ir.Instruction, pointer ir.Value, accessType AccessType) Aliasing {
	pa.assertFresh()
	if accessType == AccessStore || accessType == AccessAll {
		if store, ok := inst.(*ir.StoreInst); ok {
			return pa.CanAlias(store.Pointer(), pointer)
		}
	}
	if accessType == AccessLoad || accessType == AccessAll {
		if load, ok := inst.(*ir.LoadInst); ok {
			return pa.CanAlias(load.Pointer(), pointer)
		}
	}
	if call, ok := inst.(*ir.CallInst); ok {
		args := call.Args()
		if len(args) == 0 {
			return AliasNever
		}
		origin := pa.resolve(pointer)
		safe, known := pa.stackallocSafety[origin]
		if !known || !safe {
			return AliasMay
		}
		for _, a := range args {
			if pa.resolve(a) == origin {
				return AliasMay
			}
		}
		return AliasNever
	}
	return AliasNever
}

// IsPointerAccessedInBetween reports whether any instruction strictly
// between begin and end (same block) may access pointer.
func (pa *PointerAliasing) IsPointerAccessedInBetween(pointer ir.Value, begin, end ir.Instruction, accessType AccessType) bool {
	pa.assertFresh()
	if begin.Block() != end.Block() {
		invariantViolation("IsPointerAccessedInBetween: instructions are in different blocks")
	}
	insts := begin.Block().Instructions()
	bi, ei := indexOfInst(insts, begin), indexOfInst(insts, end)
	for i := bi + 1; i < ei; i++ {
		if pa.CanInstructionAccessPointer(insts[i], pointer, accessType) != AliasNever {
			return true
		}
	}
	return false
}

// IsPointerStackAlloc reports whether pointer's origin is a stackalloc.
func (pa *PointerAliasing) IsPointerStackAlloc(pointer ir.Value) bool {
	pa.assertFresh()
	_, ok := pa.stackallocSafety[pa.resolve(pointer)]
	return ok
}
