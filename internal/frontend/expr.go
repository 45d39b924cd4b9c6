// SPDX-License-Identifier: Apache-2.0
package frontend

import (
	"fmt"
	"strconv"

	"turbine/internal/ir"
)

// lowerExpr evaluates an Expr into an ir.Value of the given expected
// type, inserting whatever instructions are needed at the cursor's
// current block. want is passed down through every level but no step
// reads it: integer literals and arithmetic produce i32, comparisons and
// bool literals produce i1, and no conversion between the two is
// inserted.
func (fl *funcLower) lowerExpr(e *Expr, want ir.Type) (ir.Value, error) {
	return fl.lowerOr(e.Or, want)
}

func (fl *funcLower) lowerOr(e *OrExpr, want ir.Type) (ir.Value, error) {
	v, err := fl.lowerAnd(e.Left, want)
	if err != nil {
		return nil, err
	}
	for _, rhs := range e.Rest {
		r, err := fl.lowerAnd(rhs, want)
		if err != nil {
			return nil, err
		}
		v = ir.AtBlockBack(fl.cur).Or(fl.ctx, v, r)
	}
	return v, nil
}

func (fl *funcLower) lowerAnd(e *AndExpr, want ir.Type) (ir.Value, error) {
	v, err := fl.lowerCmp(e.Left, want)
	if err != nil {
		return nil, err
	}
	for _, rhs := range e.Rest {
		r, err := fl.lowerCmp(rhs, want)
		if err != nil {
			return nil, err
		}
		v = ir.AtBlockBack(fl.cur).And(fl.ctx, v, r)
	}
	return v, nil
}

var cmpPredicates = map[string]ir.Opcode{
	"==": ir.OpCmpEq, "!=": ir.OpCmpNe,
	"<": ir.OpCmpSlt, "<=": ir.OpCmpSlte,
	">": ir.OpCmpSgt, ">=": ir.OpCmpSgte,
}

func (fl *funcLower) lowerCmp(e *CmpExpr, want ir.Type) (ir.Value, error) {
	lhs, err := fl.lowerAdd(e.Left, fl.ctx.I32())
	if err != nil {
		return nil, err
	}
	if e.Right == nil {
		return lhs, nil
	}
	rhs, err := fl.lowerAdd(e.Right, fl.ctx.I32())
	if err != nil {
		return nil, err
	}
	pred, ok := cmpPredicates[e.Op]
	if !ok {
		return nil, fmt.Errorf("unknown comparison operator %q", e.Op)
	}
	return ir.AtBlockBack(fl.cur).Cmp(fl.ctx, pred, lhs, rhs), nil
}

func (fl *funcLower) lowerAdd(e *AddExpr, want ir.Type) (ir.Value, error) {
	v, err := fl.lowerMul(e.Left, want)
	if err != nil {
		return nil, err
	}
	for i, op := range e.Ops {
		r, err := fl.lowerMul(e.Rest[i], want)
		if err != nil {
			return nil, err
		}
		switch op {
		case "+":
			v = ir.AtBlockBack(fl.cur).Add(fl.ctx, v, r)
		case "-":
			v = ir.AtBlockBack(fl.cur).Sub(fl.ctx, v, r)
		default:
			return nil, fmt.Errorf("unknown additive operator %q", op)
		}
	}
	return v, nil
}

func (fl *funcLower) lowerMul(e *MulExpr, want ir.Type) (ir.Value, error) {
	v, err := fl.lowerUnary(e.Left, want)
	if err != nil {
		return nil, err
	}
	for i, op := range e.Ops {
		r, err := fl.lowerUnary(e.Rest[i], want)
		if err != nil {
			return nil, err
		}
		switch op {
		case "*":
			v = ir.AtBlockBack(fl.cur).Mul(fl.ctx, v, r)
		case "/":
			v = ir.AtBlockBack(fl.cur).DivS(fl.ctx, v, r)
		case "%":
			v = ir.AtBlockBack(fl.cur).ModS(fl.ctx, v, r)
		default:
			return nil, fmt.Errorf("unknown multiplicative operator %q", op)
		}
	}
	return v, nil
}

func (fl *funcLower) lowerUnary(e *UnaryExpr, want ir.Type) (ir.Value, error) {
	if e.Operand != nil {
		v, err := fl.lowerUnary(e.Operand, want)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "-":
			return ir.AtBlockBack(fl.cur).Neg(fl.ctx, v), nil
		case "!":
			return ir.AtBlockBack(fl.cur).Not(fl.ctx, v), nil
		default:
			return nil, fmt.Errorf("unknown unary operator %q", e.Op)
		}
	}
	return fl.lowerPrimary(e.Primary, want)
}

func (fl *funcLower) lowerPrimary(p *Primary, want ir.Type) (ir.Value, error) {
	switch {
	case p.Int != nil:
		n, err := parseIntLiteral(*p.Int)
		if err != nil {
			return nil, err
		}
		return fl.ctx.GetConstant(fl.ctx.I32(), n), nil

	case p.True:
		return fl.ctx.GetConstant(fl.ctx.I1(), 1), nil

	case p.False:
		return fl.ctx.GetConstant(fl.ctx.I1(), 0), nil

	case p.Call != nil:
		return fl.lowerCall(p.Call)

	case p.Ident != nil:
		slot, ok := fl.slots[*p.Ident]
		if !ok {
			return nil, fmt.Errorf("reference to undeclared variable %q", *p.Ident)
		}
		return ir.AtBlockBack(fl.cur).Load(fl.ctx, slot), nil

	case p.Paren != nil:
		return fl.lowerExpr(p.Paren, want)
	}
	return nil, fmt.Errorf("empty expression")
}

func (fl *funcLower) lowerCall(c *CallExpr) (ir.Value, error) {
	callee, ok := fl.fns[c.Name]
	if !ok {
		return nil, fmt.Errorf("call to undeclared function %q", c.Name)
	}
	args := make([]ir.Value, len(c.Args))
	for i, a := range c.Args {
		argType := fl.ctx.I32()
		if i < len(callee.Params()) {
			argType = callee.Params()[i].Type()
		}
		v, err := fl.lowerExpr(a, argType)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	call := ir.AtBlockBack(fl.cur).Call(fl.ctx, callee, args)
	if ir.IsVoid(callee.ReturnType()) {
		return nil, nil
	}
	return call, nil
}

func parseIntLiteral(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q: %w", s, err)
	}
	return n, nil
}
