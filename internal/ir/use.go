// SPDX-License-Identifier: Apache-2.0
package ir

// Use is a single operand slot: the tuple (user, operand-index,
// used-value) from spec's use/user model. It is simultaneously the
// user's operand slot and the node threaded into the used value's
// doubly linked use list; when the operand value changes, the Use is
// unlinked from the old value's list and relinked into the new one.
type Use struct {
	user         User
	operandIndex int
	value        Value

	listPrev, listNext *Use
}

func (u *Use) User() User        { return u.user }
func (u *Use) OperandIndex() int { return u.operandIndex }
func (u *Use) Value() Value      { return u.value }

// UseList is the intrusive doubly linked list of Use nodes attached to a
// value: "who is using me". Iteration via ForEachSafe captures each
// node's next pointer before invoking the callback, so a callback that
// redirects or removes the current use (the overwhelmingly common case:
// replace-all-uses-with) does not corrupt the walk.
type UseList struct {
	first, last *Use
	count       int
}

// Empty reports whether anything still uses this value.
func (l *UseList) Empty() bool { return l.count == 0 }

// Len reports the number of live uses.
func (l *UseList) Len() int { return l.count }

// First returns the head of the list, or nil if empty.
func (l *UseList) First() *Use { return l.first }

// Next returns the use following u in its list, or nil at the end.
func (u *Use) Next() *Use { return u.listNext }

func (l *UseList) insert(u *Use) {
	u.listPrev = l.last
	u.listNext = nil
	if l.last != nil {
		l.last.listNext = u
	} else {
		l.first = u
	}
	l.last = u
	l.count++
}

func (l *UseList) remove(u *Use) {
	if u.listPrev != nil {
		u.listPrev.listNext = u.listNext
	} else {
		l.first = u.listNext
	}
	if u.listNext != nil {
		u.listNext.listPrev = u.listPrev
	} else {
		l.last = u.listPrev
	}
	u.listPrev = nil
	u.listNext = nil
	l.count--
}

// ForEachSafe walks the list to completion, rewriting is allowed inside
// fn (the "capture next, then step" rule): fn may relink or unlink the
// current use via SetOperand without breaking the walk.
func (l *UseList) ForEachSafe(fn func(*Use)) {
	u := l.first
	for u != nil {
		next := u.listNext
		fn(u)
		u = next
	}
}

// ReplaceUses rewrites every user of old to reference newVal instead,
// walking old's use list to completion. It does not touch old itself;
// the caller destroys or repurposes it afterward.
//
// Per spec §4.2, when old is a *Block being replaced elsewhere (two
// predecessor edges collapsing onto one block), a Phi that already
// carries an incoming pair for newVal is deduplicated against the pair
// it would otherwise gain for old: the two incoming values for that
// block must agree, or the collapse is rejected as an invariant
// violation rather than silently picking one.
func ReplaceUses(old Value, newVal Value) {
	if old == newVal {
		return
	}
	oldBlock, collapsingBlock := old.(*Block)
	old.Uses().ForEachSafe(func(u *Use) {
		if collapsingBlock {
			if phi, ok := u.user.(*PhiInst); ok && u.operandIndex%2 == 0 {
				collapsePhiIncomingBlock(phi, oldBlock, newVal.(*Block))
				return
			}
		}
		u.user.SetOperand(u.operandIndex, newVal)
	})
}

// collapsePhiIncomingBlock merges phi's incoming pair for old into newVal:
// if newVal already has an incoming pair, old's value must equal it
// (otherwise the merge is rejected); if not, old's pair is retargeted to
// newVal.
func collapsePhiIncomingBlock(phi *PhiInst, old, newVal *Block) {
	oldValue, ok := phi.ValueForBlock(old)
	if !ok {
		return
	}
	if existing, already := phi.ValueForBlock(newVal); already {
		if existing != oldValue {
			invariantViolation("ReplaceUses: phi has conflicting incoming values for block %s and collapsed block %s", newVal.Label(), old.Label())
		}
		phi.RemoveIncoming(old)
		return
	}
	phi.RemoveIncoming(old)
	phi.AddIncoming(newVal, oldValue)
}

// setOperandValue is the shared implementation backing every concrete
// User.SetOperand: unlink the old value's use record (if any), relink
// into the new value's use list (if non-nil). Setting to the same value
// is a no-op; setting to nil unlinks without adding a new use.
func setOperandValue(u *Use, v Value) {
	if u.value == v {
		return
	}
	if u.value != nil {
		u.value.Uses().remove(u)
	}
	u.value = v
	if v != nil {
		if IsVoid(v.Type()) {
			invariantViolation("cannot use void-typed value %v as an operand", v)
		}
		v.Uses().insert(u)
	}
}
