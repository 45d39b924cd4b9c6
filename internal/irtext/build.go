// SPDX-License-Identifier: Apache-2.0
package irtext

import (
	"fmt"
	"strconv"

	"turbine/internal/ir"
)

// Build lowers a parsed Module into an *ir.Module against ctx,
// analogous to the teacher's AST-to-semantic-model builder but for IR
// text instead of surface syntax. It is a true two-pass construction
// (spec §6.1: "two-pass: AST then IR construction"):
//
//  1. every function (extern or defined) and every block inside each
//     defined function is created up front, so call targets and
//     branch/Phi block references resolve regardless of declaration
//     order;
//  2. instructions are built in textual order, each operand resolved
//     against a per-function name table that is filled as values are
//     produced. The one genuine forward reference the format allows —
//     a Phi incoming value from a block appearing later in the
//     function, e.g. a loop back edge — is built with placeholder
//     operands and patched once the whole function's name table is
//     complete.
func Build(ctx *ir.Context, mod *Module) (*ir.Module, error) {
	b := &builder{ctx: ctx, mod: ir.NewModule(ctx), fns: map[string]*ir.Function{}}
	for _, item := range mod.Items {
		if err := b.declare(item); err != nil {
			return nil, err
		}
	}
	for _, item := range mod.Items {
		if item.Func == nil {
			continue
		}
		if err := b.buildFunc(item.Func); err != nil {
			return nil, err
		}
	}
	return b.mod, nil
}

type builder struct {
	ctx *ir.Context
	mod *ir.Module
	fns map[string]*ir.Function
}

func (b *builder) resolveType(t *TypeRef) ir.Type {
	var base ir.Type
	switch t.Base {
	case "void":
		base = b.ctx.Void()
	case "i1":
		base = b.ctx.I1()
	case "i8":
		base = b.ctx.I8()
	case "i16":
		base = b.ctx.I16()
	case "i32":
		base = b.ctx.I32()
	case "i64":
		base = b.ctx.I64()
	default:
		base = b.ctx.I32()
	}
	if len(t.Stars) == 0 {
		return base
	}
	return b.ctx.Ref(base, len(t.Stars))
}

// declare registers a function's name, parameters and return type (and,
// for a defined function, its blocks by label) without touching any
// instruction — the first of the two passes.
func (b *builder) declare(item *Item) error {
	var name string
	var retType *TypeRef
	var params []*ParamDecl
	switch {
	case item.Extern != nil:
		name, retType, params = item.Extern.Name, item.Extern.RetType, item.Extern.Params
	case item.Func != nil:
		name, retType, params = item.Func.Name, item.Func.RetType, item.Func.Params
	default:
		return fmt.Errorf("irtext: empty top-level item")
	}
	if _, exists := b.fns[name]; exists {
		return fmt.Errorf("irtext: duplicate function name %q", name)
	}
	paramNames := make([]string, len(params))
	paramTypes := make([]ir.Type, len(params))
	for i, p := range params {
		paramNames[i] = p.Name
		paramTypes[i] = b.resolveType(p.Type)
	}
	fn := ir.NewFunction(b.ctx, name, b.resolveType(retType), paramNames, paramTypes)
	b.mod.AddFunction(fn)
	b.fns[name] = fn

	if item.Func != nil {
		for _, blk := range item.Func.Blocks {
			nb := fn.AppendBlock()
			nb.SetLabel(blk.Label)
		}
	}
	return nil
}

// funcScope carries the per-function bookkeeping needed by the second
// pass: the name table (parameters plus every instruction result seen
// so far) and the set of Phi operands still waiting on a not-yet-seen
// name.
type funcScope struct {
	fn      *ir.Function
	blocks  map[string]*ir.Block
	values  map[string]ir.Value
	pending []pendingPhi
}

type pendingPhi struct {
	phi      *ir.PhiInst
	incoming []*PhiIncoming
}

func (b *builder) buildFunc(def *FuncDef) error {
	fn := b.fns[def.Name]
	scope := &funcScope{fn: fn, blocks: map[string]*ir.Block{}, values: map[string]ir.Value{}}
	for _, blk := range fn.Blocks() {
		scope.blocks[blk.Label()] = blk
	}
	for _, p := range fn.Params() {
		scope.values[p.Name()] = p
	}
	for bi, blkDef := range def.Blocks {
		blk := fn.Blocks()[bi]
		ins := ir.AtBlockBack(blk)
		for _, line := range blkDef.Instrs {
			v, err := b.buildInstr(scope, ins, line)
			if err != nil {
				return fmt.Errorf("irtext: function %q, block %q: %w", def.Name, blkDef.Label, err)
			}
			if line.Result != nil && v != nil {
				scope.values[*line.Result] = v
			}
		}
	}
	for _, pp := range scope.pending {
		for _, inc := range pp.incoming {
			blk, ok := scope.blocks[inc.Block]
			if !ok {
				return fmt.Errorf("irtext: function %q: phi references unknown block %q", def.Name, inc.Block)
			}
			val, err := b.resolveValue(scope, inc.Val, pp.phi.Type())
			if err != nil {
				return fmt.Errorf("irtext: function %q: %w", def.Name, err)
			}
			pp.phi.SetIncomingValue(blk, val)
		}
	}
	return nil
}

func (b *builder) resolveValue(scope *funcScope, ref *ValueRef, typ ir.Type) (ir.Value, error) {
	switch {
	case ref.Kw != nil:
		switch *ref.Kw {
		case "true":
			return b.ctx.GetConstant(b.ctx.I1(), 1), nil
		case "false":
			return b.ctx.GetConstant(b.ctx.I1(), 0), nil
		case "null":
			return b.ctx.GetConstant(typ, 0), nil
		case "undef":
			return b.ctx.GetUndef(typ), nil
		}
	case ref.Lit != nil:
		u, err := strconv.ParseUint(*ref.Lit, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer literal %q: %w", *ref.Lit, err)
		}
		return b.ctx.GetConstant(typ, u), nil
	case ref.Ident != nil:
		if v, ok := scope.values[*ref.Ident]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("undefined value %q", *ref.Ident)
	}
	return nil, fmt.Errorf("malformed operand")
}

func (b *builder) resolveBlock(scope *funcScope, label string) (*ir.Block, error) {
	blk, ok := scope.blocks[label]
	if !ok {
		return nil, fmt.Errorf("undefined block %q", label)
	}
	return blk, nil
}

var cmpPreds = map[string]ir.Opcode{
	"eq": ir.OpCmpEq, "ne": ir.OpCmpNe,
	"ugt": ir.OpCmpUgt, "ugte": ir.OpCmpUgte,
	"sgt": ir.OpCmpSgt, "sgte": ir.OpCmpSgte,
	"ult": ir.OpCmpUlt, "ulte": ir.OpCmpUlte,
	"slt": ir.OpCmpSlt, "slte": ir.OpCmpSlte,
}

func (b *builder) insertBinary(ins *ir.Inserter, mn string, lhs, rhs ir.Value) ir.Value {
	switch mn {
	case "add":
		return ins.Add(b.ctx, lhs, rhs)
	case "sub":
		return ins.Sub(b.ctx, lhs, rhs)
	case "mul":
		return ins.Mul(b.ctx, lhs, rhs)
	case "udiv":
		return ins.DivU(b.ctx, lhs, rhs)
	case "sdiv":
		return ins.DivS(b.ctx, lhs, rhs)
	case "umod":
		return ins.ModU(b.ctx, lhs, rhs)
	case "smod":
		return ins.ModS(b.ctx, lhs, rhs)
	case "shr":
		return ins.Shr(b.ctx, lhs, rhs)
	case "shl":
		return ins.Shl(b.ctx, lhs, rhs)
	case "sar":
		return ins.Sar(b.ctx, lhs, rhs)
	case "and":
		return ins.And(b.ctx, lhs, rhs)
	case "or":
		return ins.Or(b.ctx, lhs, rhs)
	default:
		return ins.Xor(b.ctx, lhs, rhs)
	}
}

func (b *builder) insertCast(ins *ir.Inserter, mn string, src ir.Value, dst ir.Type) ir.Value {
	switch mn {
	case "zext":
		return ins.ZeroExtend(b.ctx, src, dst)
	case "sext":
		return ins.SignExtend(b.ctx, src, dst)
	case "trunc":
		return ins.Truncate(b.ctx, src, dst)
	default:
		return ins.Bitcast(b.ctx, src, dst)
	}
}

func (b *builder) buildInstr(scope *funcScope, ins *ir.Inserter, line *InstrLine) (ir.Value, error) {
	body := line.Body
	switch {
	case body.Unary != nil:
		u := body.Unary
		typ := b.resolveType(u.Type)
		x, err := b.resolveValue(scope, u.X, typ)
		if err != nil {
			return nil, err
		}
		if u.Op == "neg" {
			return ins.Neg(b.ctx, x), nil
		}
		return ins.Not(b.ctx, x), nil

	case body.Binary != nil:
		bi := body.Binary
		typ := b.resolveType(bi.Type)
		lhs, err := b.resolveValue(scope, bi.LHS, typ)
		if err != nil {
			return nil, err
		}
		rhs, err := b.resolveValue(scope, bi.RHS, typ)
		if err != nil {
			return nil, err
		}
		return b.insertBinary(ins, bi.Op, lhs, rhs), nil

	case body.Cmp != nil:
		c := body.Cmp
		typ := b.resolveType(c.Type)
		lhs, err := b.resolveValue(scope, c.LHS, typ)
		if err != nil {
			return nil, err
		}
		rhs, err := b.resolveValue(scope, c.RHS, typ)
		if err != nil {
			return nil, err
		}
		return ins.Cmp(b.ctx, cmpPreds[c.Pred], lhs, rhs), nil

	case body.Load != nil:
		l := body.Load
		ptrType := b.ctx.Ref(b.resolveType(l.Type), 1)
		ptr, err := b.resolveValue(scope, l.Ptr, ptrType)
		if err != nil {
			return nil, err
		}
		return ins.Load(b.ctx, ptr), nil

	case body.Store != nil:
		s := body.Store
		valType := b.resolveType(s.Type)
		ptrType := b.ctx.Ref(valType, 1)
		ptr, err := b.resolveValue(scope, s.Ptr, ptrType)
		if err != nil {
			return nil, err
		}
		val, err := b.resolveValue(scope, s.Val, valType)
		if err != nil {
			return nil, err
		}
		ins.Store(b.ctx, ptr, val)
		return nil, nil

	case body.Call != nil:
		c := body.Call
		callee, ok := b.fns[c.Callee]
		if !ok {
			return nil, fmt.Errorf("call to undeclared function %q", c.Callee)
		}
		args := make([]ir.Value, len(c.Args))
		for i, a := range c.Args {
			argType := b.resolveType(a.Type)
			v, err := b.resolveValue(scope, a.Val, argType)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		call := ins.Call(b.ctx, callee, args)
		if ir.IsVoid(callee.ReturnType()) {
			return nil, nil
		}
		return call, nil

	case body.Branch != nil:
		target, err := b.resolveBlock(scope, body.Branch.Target)
		if err != nil {
			return nil, err
		}
		ins.Branch(b.ctx, target)
		return nil, nil

	case body.CondBr != nil:
		cb := body.CondBr
		cond, err := b.resolveValue(scope, cb.Cond, b.ctx.I1())
		if err != nil {
			return nil, err
		}
		tt, err := b.resolveBlock(scope, cb.TrueTarget)
		if err != nil {
			return nil, err
		}
		ft, err := b.resolveBlock(scope, cb.FalseTarget)
		if err != nil {
			return nil, err
		}
		ins.CondBranch(b.ctx, cond, tt, ft)
		return nil, nil

	case body.Alloc != nil:
		a := body.Alloc
		size := 1
		if a.Size != nil {
			n, err := strconv.Atoi(*a.Size)
			if err != nil {
				return nil, fmt.Errorf("bad stackalloc size %q: %w", *a.Size, err)
			}
			size = n
		}
		return ins.StackAlloc(b.ctx, b.resolveType(a.Type), size), nil

	case body.Ret != nil:
		r := body.Ret
		if r.VoidKw != nil {
			ins.Ret(b.ctx, nil)
			return nil, nil
		}
		typ := b.resolveType(r.Typed.Type)
		val, err := b.resolveValue(scope, r.Typed.Val, typ)
		if err != nil {
			return nil, err
		}
		ins.Ret(b.ctx, val)
		return nil, nil

	case body.Offset != nil:
		o := body.Offset
		ptrType := b.resolveType(o.Type)
		base, err := b.resolveValue(scope, o.Base, ptrType)
		if err != nil {
			return nil, err
		}
		idx, err := b.resolveValue(scope, o.Index, b.ctx.I64())
		if err != nil {
			return nil, err
		}
		return ins.Offset(b.ctx, base, idx), nil

	case body.Cast != nil:
		c := body.Cast
		srcType := b.resolveType(c.SrcType)
		dstType := b.resolveType(c.DstType)
		src, err := b.resolveValue(scope, c.Val, srcType)
		if err != nil {
			return nil, err
		}
		return b.insertCast(ins, c.Op, src, dstType), nil

	case body.Select != nil:
		s := body.Select
		typ := b.resolveType(s.Type)
		cond, err := b.resolveValue(scope, s.Cond, b.ctx.I1())
		if err != nil {
			return nil, err
		}
		ifTrue, err := b.resolveValue(scope, s.IfTrue, typ)
		if err != nil {
			return nil, err
		}
		ifFalse, err := b.resolveValue(scope, s.IfFalse, typ)
		if err != nil {
			return nil, err
		}
		return ins.Select(b.ctx, cond, ifTrue, ifFalse), nil

	case body.Phi != nil:
		p := body.Phi
		typ := b.resolveType(p.Type)
		phi := ins.Phi(b.ctx, typ)
		for _, inc := range p.Incoming {
			blk, err := b.resolveBlock(scope, inc.Block)
			if err != nil {
				return nil, err
			}
			phi.AddIncoming(blk, b.ctx.GetUndef(typ))
		}
		scope.pending = append(scope.pending, pendingPhi{phi: phi, incoming: p.Incoming})
		return phi, nil
	}
	return nil, fmt.Errorf("irtext: empty instruction body")
}
