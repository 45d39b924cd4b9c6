// SPDX-License-Identifier: Apache-2.0
package frontend

import (
	"fmt"

	"turbine/internal/ir"
)

// Lower builds an *ir.Module from a turboc Program. Every local
// variable (including parameters) is given a scalar stack slot in the
// entry block and accessed through Load/Store — the simplest possible
// correct lowering, deliberately leaving SSA promotion to
// `internal/passes.MemoryToSSA` rather than tracking definitions
// itself. A hand-rolled front end has no reason to duplicate a pass
// the core already provides.
func Lower(ctx *ir.Context, prog *Program) (*ir.Module, error) {
	mod := ir.NewModule(ctx)
	l := &lowerer{ctx: ctx, mod: mod, fns: map[string]*ir.Function{}}
	for _, fd := range prog.Functions {
		paramNames := make([]string, len(fd.Params))
		paramTypes := make([]ir.Type, len(fd.Params))
		for i, p := range fd.Params {
			paramNames[i] = p.Name
			paramTypes[i] = l.irType(p.Type.Name)
		}
		fn := ir.NewFunction(ctx, fd.Name, l.irType(fd.RetType.Name), paramNames, paramTypes)
		mod.AddFunction(fn)
		l.fns[fd.Name] = fn
	}
	for _, fd := range prog.Functions {
		if err := l.lowerFunc(fd); err != nil {
			return nil, fmt.Errorf("frontend: function %q: %w", fd.Name, err)
		}
	}
	return mod, nil
}

func (l *lowerer) irType(name string) ir.Type {
	switch name {
	case "bool":
		return l.ctx.I1()
	case "void":
		return l.ctx.Void()
	default:
		return l.ctx.I32()
	}
}

type lowerer struct {
	ctx *ir.Context
	mod *ir.Module
	fns map[string]*ir.Function
}

// funcLower carries one function's local-variable slot table and the
// insertion cursor for the block currently being lowered.
type funcLower struct {
	*lowerer
	fn    *ir.Function
	slots map[string]*ir.StackAllocInst
	types map[string]ir.Type
	cur   *ir.Block
}

func (l *lowerer) lowerFunc(fd *FuncDecl) error {
	fn := l.fns[fd.Name]
	entry := fn.AppendBlock()
	fl := &funcLower{lowerer: l, fn: fn, slots: map[string]*ir.StackAllocInst{}, types: map[string]ir.Type{}, cur: entry}

	for _, p := range fn.Params() {
		slot := ir.AtBlockBack(entry).StackAlloc(l.ctx, p.Type(), 1)
		ir.AtBlockBack(entry).Store(l.ctx, slot, p)
		fl.slots[p.Name()] = slot
		fl.types[p.Name()] = p.Type()
	}

	if err := fl.lowerBlock(fd.Body); err != nil {
		return err
	}
	fl.ensureTerminated(fn.ReturnType())
	return nil
}

// ensureTerminated appends a default return to any block that fell off
// the end of the function body without one (e.g. a void function with
// no explicit return).
func (fl *funcLower) ensureTerminated(retType ir.Type) {
	if fl.cur.Terminator() != nil {
		return
	}
	if ir.IsVoid(retType) {
		ir.AtBlockBack(fl.cur).Ret(fl.ctx, nil)
		return
	}
	ir.AtBlockBack(fl.cur).Ret(fl.ctx, fl.ctx.GetConstant(retType, 0))
}

func (fl *funcLower) lowerBlock(b *Block) error {
	for _, s := range b.Stmts {
		if fl.cur.Terminator() != nil {
			// Unreachable code after a return; turboc has no use for
			// it and the dead-block pass would remove the block anyway.
			break
		}
		if err := fl.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fl *funcLower) lowerStmt(s *Stmt) error {
	switch {
	case s.VarDecl != nil:
		vd := s.VarDecl
		typ := fl.irType(vd.Type)
		v, err := fl.lowerExpr(&vd.Init, typ)
		if err != nil {
			return err
		}
		slot := ir.AtBlockBack(fl.cur).StackAlloc(fl.ctx, typ, 1)
		ir.AtBlockBack(fl.cur).Store(fl.ctx, slot, v)
		fl.slots[vd.Name] = slot
		fl.types[vd.Name] = typ
		return nil

	case s.Assign != nil:
		as := s.Assign
		slot, ok := fl.slots[as.Name]
		if !ok {
			return fmt.Errorf("assignment to undeclared variable %q", as.Name)
		}
		v, err := fl.lowerExpr(&as.Value, fl.types[as.Name])
		if err != nil {
			return err
		}
		ir.AtBlockBack(fl.cur).Store(fl.ctx, slot, v)
		return nil

	case s.ExprStmt != nil:
		_, err := fl.lowerExpr(&s.ExprStmt.Value, fl.ctx.I32())
		return err

	case s.Return != nil:
		if s.Return.Value.Or == nil {
			ir.AtBlockBack(fl.cur).Ret(fl.ctx, nil)
			return nil
		}
		v, err := fl.lowerExpr(&s.Return.Value, fl.fn.ReturnType())
		if err != nil {
			return err
		}
		ir.AtBlockBack(fl.cur).Ret(fl.ctx, v)
		return nil

	case s.Block != nil:
		return fl.lowerBlock(s.Block)

	case s.If != nil:
		return fl.lowerIf(s.If)

	case s.While != nil:
		return fl.lowerWhile(s.While)
	}
	return fmt.Errorf("empty statement")
}

func (fl *funcLower) lowerIf(is *IfStmt) error {
	cond, err := fl.lowerExpr(&is.Cond, fl.ctx.I1())
	if err != nil {
		return err
	}
	thenBlock := fl.fn.AppendBlock()
	elseBlock := fl.fn.AppendBlock()
	joinBlock := fl.fn.AppendBlock()

	ir.AtBlockBack(fl.cur).CondBranch(fl.ctx, cond, thenBlock, elseBlock)

	fl.cur = thenBlock
	if err := fl.lowerBlock(is.Then); err != nil {
		return err
	}
	if fl.cur.Terminator() == nil {
		ir.AtBlockBack(fl.cur).Branch(fl.ctx, joinBlock)
	}

	fl.cur = elseBlock
	if is.Else != nil {
		if err := fl.lowerBlock(is.Else); err != nil {
			return err
		}
	}
	if fl.cur.Terminator() == nil {
		ir.AtBlockBack(fl.cur).Branch(fl.ctx, joinBlock)
	}

	fl.cur = joinBlock
	return nil
}

func (fl *funcLower) lowerWhile(ws *WhileStmt) error {
	headerBlock := fl.fn.AppendBlock()
	bodyBlock := fl.fn.AppendBlock()
	exitBlock := fl.fn.AppendBlock()

	ir.AtBlockBack(fl.cur).Branch(fl.ctx, headerBlock)

	fl.cur = headerBlock
	cond, err := fl.lowerExpr(&ws.Cond, fl.ctx.I1())
	if err != nil {
		return err
	}
	ir.AtBlockBack(fl.cur).CondBranch(fl.ctx, cond, bodyBlock, exitBlock)

	fl.cur = bodyBlock
	if err := fl.lowerBlock(ws.Body); err != nil {
		return err
	}
	if fl.cur.Terminator() == nil {
		ir.AtBlockBack(fl.cur).Branch(fl.ctx, headerBlock)
	}

	fl.cur = exitBlock
	return nil
}
