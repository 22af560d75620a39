// Function-body execution: pattern-local functions invoked from
// expressions (the format attribute hook, or ordinary calls)
// run their statements through an explicit control-flow signal rather
// than panic-based unwinding, the idiomatic Go shape for
// break/continue/return instead of evaluator.cpp's C++ exceptions.
package eval

import (
	"strconv"

	"patternlang/internal/ast"
	"patternlang/internal/diag"
)

type ctrlSignal int

const (
	ctrlNone ctrlSignal = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

type execResult struct {
	signal ctrlSignal
	value  Value
	err    error
}

type stmtVisitor struct {
	e   *Evaluator
	ctx exprCtx
}

// callFunction invokes a user-defined function with already-evaluated
// argument values, returning its `return` value (or a void Value if
// it falls off the end without one).
func (e *Evaluator) callFunction(fn *ast.FunctionDecl, args []Value) (Value, error) {
	if len(fn.Params) != len(args) {
		return Value{}, diag.New(diag.KindSemantic,
			"function "+fn.Name+" expects "+strconv.Itoa(len(fn.Params))+" arguments, got "+strconv.Itoa(len(args)),
			declLoc(fn.Position))
	}
	sc := newScope(nil)
	for i, p := range fn.Params {
		sc.define(p.Name, args[i])
	}
	res := e.execBlock(fn.Body, exprCtx{scope: sc})
	if res.err != nil {
		return Value{}, res.err
	}
	if res.signal == ctrlReturn {
		return res.value, nil
	}
	return Value{Kind: KindVoid}, nil
}

func (e *Evaluator) execBlock(stmts []ast.Stmt, ctx exprCtx) execResult {
	block := exprCtx{scope: newScope(ctx.scope), siblings: ctx.siblings}
	for _, s := range stmts {
		if err := e.opts.Tick(); err != nil {
			return execResult{err: err}
		}
		r := e.execStmt(s, block)
		if r.err != nil || r.signal != ctrlNone {
			return r
		}
	}
	return execResult{}
}

func (e *Evaluator) execStmt(s ast.Stmt, ctx exprCtx) execResult {
	vis := &stmtVisitor{e: e, ctx: ctx}
	return s.Accept(vis).(execResult)
}

func (v *stmtVisitor) VisitExprStmt(n *ast.ExprStmt) interface{} {
	if _, err := v.e.evalExpr(n.Expr, v.ctx); err != nil {
		return execResult{err: err}
	}
	return execResult{}
}

func (v *stmtVisitor) VisitIfStmt(n *ast.IfStmt) interface{} {
	cond, err := v.e.evalExpr(n.Cond, v.ctx)
	if err != nil {
		return execResult{err: err}
	}
	s, err := v.e.coerceScalar(cond)
	if err != nil {
		return execResult{err: err}
	}
	if s.AsBool() {
		return v.e.execBlock(n.Then, v.ctx)
	}
	if n.Else != nil {
		return v.e.execBlock(n.Else, v.ctx)
	}
	return execResult{}
}

func (v *stmtVisitor) VisitWhileStmt(n *ast.WhileStmt) interface{} {
	for {
		if err := v.e.opts.Tick(); err != nil {
			return execResult{err: err}
		}
		cond, err := v.e.evalExpr(n.Cond, v.ctx)
		if err != nil {
			return execResult{err: err}
		}
		s, err := v.e.coerceScalar(cond)
		if err != nil {
			return execResult{err: err}
		}
		if !s.AsBool() {
			return execResult{}
		}
		r := v.e.execBlock(n.Body, v.ctx)
		if r.err != nil {
			return r
		}
		if r.signal == ctrlBreak {
			return execResult{}
		}
		if r.signal == ctrlReturn {
			return r
		}
		// ctrlContinue and ctrlNone both fall through to the next iteration.
	}
}

func (v *stmtVisitor) VisitForStmt(n *ast.ForStmt) interface{} {
	loopCtx := exprCtx{scope: newScope(v.ctx.scope), siblings: v.ctx.siblings}
	if n.Init != nil {
		r := v.e.execStmt(n.Init, loopCtx)
		if r.err != nil {
			return r
		}
	}
	for {
		if err := v.e.opts.Tick(); err != nil {
			return execResult{err: err}
		}
		if n.Cond != nil {
			cond, err := v.e.evalExpr(n.Cond, loopCtx)
			if err != nil {
				return execResult{err: err}
			}
			s, err := v.e.coerceScalar(cond)
			if err != nil {
				return execResult{err: err}
			}
			if !s.AsBool() {
				return execResult{}
			}
		}
		r := v.e.execBlock(n.Body, loopCtx)
		if r.err != nil {
			return r
		}
		if r.signal == ctrlBreak {
			return execResult{}
		}
		if r.signal == ctrlReturn {
			return r
		}
		if n.Update != nil {
			ur := v.e.execStmt(n.Update, loopCtx)
			if ur.err != nil {
				return ur
			}
		}
	}
}

func (v *stmtVisitor) VisitReturnStmt(n *ast.ReturnStmt) interface{} {
	if n.Value == nil {
		return execResult{signal: ctrlReturn, value: Value{Kind: KindVoid}}
	}
	val, err := v.e.evalExpr(n.Value, v.ctx)
	if err != nil {
		return execResult{err: err}
	}
	s, err := v.e.coerceScalar(val)
	if err != nil {
		return execResult{err: err}
	}
	return execResult{signal: ctrlReturn, value: s}
}

func (v *stmtVisitor) VisitBreakStmt(n *ast.BreakStmt) interface{} {
	return execResult{signal: ctrlBreak}
}

func (v *stmtVisitor) VisitContinueStmt(n *ast.ContinueStmt) interface{} {
	return execResult{signal: ctrlContinue}
}

func (v *stmtVisitor) VisitVarStmt(n *ast.VarStmt) interface{} {
	var val Value
	if n.Init != nil {
		iv, err := v.e.evalExpr(n.Init, v.ctx)
		if err != nil {
			return execResult{err: err}
		}
		s, err := v.e.coerceScalar(iv)
		if err != nil {
			return execResult{err: err}
		}
		val = s
	}
	v.ctx.scope.define(n.Name, val)
	return execResult{}
}
