// General expression evaluation: array-size expressions, placement
// addresses, section names, enum values, bitfield widths, attribute
// arguments, and pattern-local function bodies all funnel through the
// same ast.ExprVisitor, grounded on evaluator.cpp's single expression
// evaluation pass over the same AST used for pattern construction.
package eval

import (
	"math"
	"strings"

	"patternlang/internal/ast"
	"patternlang/internal/diag"
	"patternlang/internal/pattern"
)

// exprCtx carries the local state an expression may reach into: the
// innermost function scope (nil outside a function body) and the
// direct siblings of the pattern currently being sized/placed. The
// this/parent patterns are not held here; they come from the
// evaluator's own struct stack.
type exprCtx struct {
	scope    *scope
	siblings []pattern.Node
}

type exprResult struct {
	val Value
	err error
}

func okResult(v Value) interface{}  { return exprResult{val: v} }
func errResult(err error) interface{} { return exprResult{err: err} }

type exprVisitor struct {
	e   *Evaluator
	ctx exprCtx
}

// evalConstExpr evaluates expr with siblings as the only reachable
// environment (no function scope), coercing any pattern-valued result
// down to its decoded scalar — callers like array-size and placement-
// address resolution only ever want the number, never the node.
func (e *Evaluator) evalConstExpr(expr ast.Expr, siblings []pattern.Node) (Value, error) {
	v, err := e.evalExpr(expr, exprCtx{siblings: siblings})
	if err != nil {
		return Value{}, err
	}
	return e.coerceScalar(v)
}

func (e *Evaluator) evalExpr(expr ast.Expr, ctx exprCtx) (Value, error) {
	vis := &exprVisitor{e: e, ctx: ctx}
	r := expr.Accept(vis).(exprResult)
	return r.val, r.err
}

func (v *exprVisitor) sub(expr ast.Expr) (Value, error) {
	return v.e.evalExpr(expr, v.ctx)
}

// coerceScalar decodes a pattern-wrapped Value into its underlying
// scalar reading; non-pattern values pass through unchanged.
func (e *Evaluator) coerceScalar(v Value) (Value, error) {
	if v.Kind != KindPattern {
		return v, nil
	}
	n, ok := v.Pat.(pattern.Node)
	if !ok {
		return v, nil
	}
	return e.valueFromPattern(n)
}

// valueFromPattern decodes a built pattern's bytes into a Value;
// composite kinds (struct/union/array/bitfield) have no single scalar
// reading and are passed back through unchanged for Member/Index to
// navigate further.
func (e *Evaluator) valueFromPattern(n pattern.Node) (Value, error) {
	switch t := n.(type) {
	case *pattern.Unsigned:
		hi, lo, err := e.readUint(t.Offset, t.Width, t.Endian)
		if err != nil {
			return Value{}, diag.NewSub(diag.KindRuntime, diag.SubOutOfBounds, err.Error(), diag.Location{}).Wrap(err)
		}
		return Value{Kind: KindInt, Hi: hi, Lo: lo}, nil
	case *pattern.Signed:
		hi, lo, err := e.readUint(t.Offset, t.Width, t.Endian)
		if err != nil {
			return Value{}, diag.NewSub(diag.KindRuntime, diag.SubOutOfBounds, err.Error(), diag.Location{}).Wrap(err)
		}
		return Value{Kind: KindInt, Hi: hi, Lo: lo, Signed: true}, nil
	case *pattern.Enum:
		return Value{Kind: KindInt, Hi: t.Hi, Lo: t.Lo}, nil
	case *pattern.Float:
		_, lo, err := e.readUint(t.Offset, t.Width, t.Endian)
		if err != nil {
			return Value{}, diag.NewSub(diag.KindRuntime, diag.SubOutOfBounds, err.Error(), diag.Location{}).Wrap(err)
		}
		if t.Width == 4 {
			return FloatValue(float64(math.Float32frombits(uint32(lo)))), nil
		}
		return FloatValue(math.Float64frombits(lo)), nil
	case *pattern.Boolean:
		_, lo, err := e.readUint(t.Offset, 1, t.Endian)
		if err != nil {
			return Value{}, diag.NewSub(diag.KindRuntime, diag.SubOutOfBounds, err.Error(), diag.Location{}).Wrap(err)
		}
		return BoolValue(lo != 0), nil
	case *pattern.Character:
		_, lo, err := e.readUint(t.Offset, t.Width, t.Endian)
		if err != nil {
			return Value{}, diag.NewSub(diag.KindRuntime, diag.SubOutOfBounds, err.Error(), diag.Location{}).Wrap(err)
		}
		return UintValue(lo), nil
	case *pattern.StringPattern:
		buf := make([]byte, t.Size)
		if err := e.readBytes(t.Offset, buf); err != nil {
			return Value{}, diag.NewSub(diag.KindRuntime, diag.SubOutOfBounds, err.Error(), diag.Location{}).Wrap(err)
		}
		return StringValue(string(buf)), nil
	default:
		return PatternValue(n), nil
	}
}

// findSibling looks up name among a struct/union's already-built
// direct siblings (the "direct siblings only" environment).
func findSibling(siblings []pattern.Node, name string) (pattern.Node, bool) {
	for _, s := range siblings {
		if s.Common().Name == name {
			return s, true
		}
	}
	return nil, false
}

func (v *exprVisitor) VisitIntLiteral(n *ast.IntLiteral) interface{} {
	return okResult(Value{Kind: KindInt, Hi: n.Hi, Lo: n.Lo, Signed: n.Signed})
}

func (v *exprVisitor) VisitFloatLiteral(n *ast.FloatLiteral) interface{} {
	return okResult(FloatValue(n.Value))
}

func (v *exprVisitor) VisitCharLiteral(n *ast.CharLiteral) interface{} {
	return okResult(UintValue(uint64(n.Value)))
}

func (v *exprVisitor) VisitStringLiteral(n *ast.StringLiteral) interface{} {
	return okResult(StringValue(n.Value))
}

func (v *exprVisitor) VisitBoolLiteral(n *ast.BoolLiteral) interface{} {
	return okResult(BoolValue(n.Value))
}

func (v *exprVisitor) VisitIdentifier(n *ast.Identifier) interface{} {
	if v.ctx.scope != nil {
		if val, ok := v.ctx.scope.get(n.Name); ok {
			return okResult(val)
		}
	}
	if sib, ok := findSibling(v.ctx.siblings, n.Name); ok {
		return okResult(PatternValue(sib))
	}
	if val, ok := v.e.inVars[n.Name]; ok {
		return okResult(val)
	}
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	return errResult(diag.NewSub(diag.KindSemantic, diag.SubUndefinedSymbol, "undefined symbol "+n.Name, loc))
}

func (v *exprVisitor) VisitScopeResolution(n *ast.ScopeResolution) interface{} {
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	if len(n.Path) < 2 {
		return errResult(diag.NewSub(diag.KindSemantic, diag.SubUndefinedSymbol, "malformed qualified name", loc))
	}
	typeName := strings.Join(n.Path[:len(n.Path)-1], "::")
	valueName := n.Path[len(n.Path)-1]
	td, ok := v.e.types[typeName]
	if !ok || td.Enum == nil {
		return errResult(diag.NewSub(diag.KindSemantic, diag.SubUnknownType, "unknown enum type "+typeName, loc))
	}
	prevLo := uint64(0)
	prevSet := false
	for _, ev := range td.Enum.Values {
		var lo uint64
		if ev.Value != nil {
			val, err := v.e.evalConstExpr(ev.Value, nil)
			if err != nil {
				return errResult(err)
			}
			lo = val.AsUint64()
		} else if prevSet {
			lo = prevLo + 1
		}
		if ev.Name == valueName {
			return okResult(UintValue(lo))
		}
		prevLo, prevSet = lo, true
	}
	return errResult(diag.NewSub(diag.KindSemantic, diag.SubUndefinedSymbol, "unknown enum value "+valueName, loc))
}

func (v *exprVisitor) VisitBinary(n *ast.Binary) interface{} {
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	if n.Op == "&&" || n.Op == "||" {
		left, err := v.sub(n.Left)
		if err != nil {
			return errResult(err)
		}
		leftScalar, err := v.e.coerceScalar(left)
		if err != nil {
			return errResult(err)
		}
		if n.Op == "&&" && !leftScalar.AsBool() {
			return okResult(BoolValue(false))
		}
		if n.Op == "||" && leftScalar.AsBool() {
			return okResult(BoolValue(true))
		}
		right, err := v.sub(n.Right)
		if err != nil {
			return errResult(err)
		}
		rightScalar, err := v.e.coerceScalar(right)
		if err != nil {
			return errResult(err)
		}
		return okResult(BoolValue(rightScalar.AsBool()))
	}

	left, err := v.sub(n.Left)
	if err != nil {
		return errResult(err)
	}
	right, err := v.sub(n.Right)
	if err != nil {
		return errResult(err)
	}
	l, err := v.e.coerceScalar(left)
	if err != nil {
		return errResult(err)
	}
	r, err := v.e.coerceScalar(right)
	if err != nil {
		return errResult(err)
	}
	if l.Kind == KindString || r.Kind == KindString {
		result, serr := evalBinaryString(n.Op, l, r, loc)
		if serr != nil {
			return errResult(serr)
		}
		return okResult(result)
	}
	if (n.Op == "/" || n.Op == "%") && r.AsInt64() == 0 && r.AsFloat64() == 0 {
		return errResult(diag.NewSub(diag.KindRuntime, diag.SubDivisionByZero, "division by zero", loc))
	}
	return okResult(evalBinaryNumeric(n.Op, l, r))
}

func (v *exprVisitor) VisitUnary(n *ast.Unary) interface{} {
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	switch n.Op {
	case "-":
		val, err := v.sub(n.Operand)
		if err != nil {
			return errResult(err)
		}
		s, err := v.e.coerceScalar(val)
		if err != nil {
			return errResult(err)
		}
		if s.Kind == KindFloat {
			return okResult(FloatValue(-s.AsFloat64()))
		}
		return okResult(IntValue(-s.AsInt64()))
	case "!":
		val, err := v.sub(n.Operand)
		if err != nil {
			return errResult(err)
		}
		s, err := v.e.coerceScalar(val)
		if err != nil {
			return errResult(err)
		}
		return okResult(BoolValue(!s.AsBool()))
	case "~":
		val, err := v.sub(n.Operand)
		if err != nil {
			return errResult(err)
		}
		s, err := v.e.coerceScalar(val)
		if err != nil {
			return errResult(err)
		}
		return okResult(mkInt(^s.Lo, s.Signed))
	case "&":
		pat, err := v.sub(n.Operand)
		if err != nil {
			return errResult(err)
		}
		if pat.Kind == KindPattern {
			if node, ok := pat.Pat.(pattern.Node); ok {
				return okResult(UintValue(node.Common().Offset))
			}
		}
		return errResult(diag.New(diag.KindSemantic, "'&' requires a pattern operand", loc))
	case "*":
		pat, err := v.sub(n.Operand)
		if err != nil {
			return errResult(err)
		}
		if pat.Kind == KindPattern {
			if ptr, ok := pat.Pat.(*pattern.Pointer); ok && ptr.Pointee != nil {
				val, verr := v.e.valueFromPattern(ptr.Pointee)
				return exprResultOf(val, verr)
			}
		}
		return errResult(diag.New(diag.KindSemantic, "'*' requires a pointer operand", loc))
	}
	return errResult(diag.New(diag.KindInternal, "unknown unary operator "+n.Op, loc))
}

func exprResultOf(v Value, err error) interface{} {
	if err != nil {
		return errResult(err)
	}
	return okResult(v)
}

func (v *exprVisitor) VisitTernary(n *ast.Ternary) interface{} {
	cond, err := v.sub(n.Cond)
	if err != nil {
		return errResult(err)
	}
	s, err := v.e.coerceScalar(cond)
	if err != nil {
		return errResult(err)
	}
	if s.AsBool() {
		val, err := v.sub(n.Then)
		return exprResultOf(val, err)
	}
	val, err := v.sub(n.Else)
	return exprResultOf(val, err)
}

func (v *exprVisitor) VisitAssign(n *ast.Assign) interface{} {
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	id, ok := n.Target.(*ast.Identifier)
	if !ok {
		return errResult(diag.New(diag.KindSemantic, "assignment target must be a local variable", loc))
	}
	if v.ctx.scope == nil {
		return errResult(diag.New(diag.KindSemantic, "assignment outside of a function body", loc))
	}
	val, err := v.sub(n.Value)
	if err != nil {
		return errResult(err)
	}
	s, err := v.e.coerceScalar(val)
	if err != nil {
		return errResult(err)
	}
	v.ctx.scope.set(id.Name, s)
	return okResult(s)
}

func (v *exprVisitor) VisitCall(n *ast.Call) interface{} {
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	fn, ok := v.e.funcs[n.Callee]
	if !ok {
		return errResult(diag.NewSub(diag.KindSemantic, diag.SubUndefinedSymbol, "undefined function "+n.Callee, loc))
	}
	args := make([]Value, 0, len(n.Args))
	for _, a := range n.Args {
		val, err := v.sub(a)
		if err != nil {
			return errResult(err)
		}
		s, err := v.e.coerceScalar(val)
		if err != nil {
			return errResult(err)
		}
		args = append(args, s)
	}
	result, err := v.e.callFunction(fn, args)
	return exprResultOf(result, err)
}

func (v *exprVisitor) VisitMember(n *ast.Member) interface{} {
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	obj, err := v.sub(n.Object)
	if err != nil {
		return errResult(err)
	}
	node, ok := obj.Pat.(pattern.Node)
	if obj.Kind != KindPattern || !ok {
		return errResult(diag.New(diag.KindSemantic, "'.' requires a pattern operand", loc))
	}
	var children []pattern.Node
	switch t := node.(type) {
	case *pattern.Struct:
		children = t.Children
	case *pattern.Union:
		children = t.Children
	case *pattern.Pointer:
		if t.Pointee != nil {
			return v.VisitMember(&ast.Member{Position: n.Position, Object: &patternLiteral{Position: n.Position, Node: t.Pointee}, Field: n.Field})
		}
	}
	for _, c := range children {
		if c.Common().Name == n.Field {
			val, ferr := v.e.valueFromPattern(c)
			return exprResultOf(val, ferr)
		}
	}
	return errResult(diag.NewSub(diag.KindSemantic, diag.SubUndefinedSymbol, "no member named "+n.Field, loc))
}

func (v *exprVisitor) VisitIndex(n *ast.Index) interface{} {
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	obj, err := v.sub(n.Object)
	if err != nil {
		return errResult(err)
	}
	idxVal, err := v.sub(n.Index)
	if err != nil {
		return errResult(err)
	}
	idxScalar, err := v.e.coerceScalar(idxVal)
	if err != nil {
		return errResult(err)
	}
	idx := idxScalar.AsInt64()

	node, ok := obj.Pat.(pattern.Node)
	if obj.Kind != KindPattern || !ok {
		return errResult(diag.New(diag.KindSemantic, "'[]' requires a pattern operand", loc))
	}
	arr, ok := node.(*pattern.Array)
	if !ok {
		return errResult(diag.New(diag.KindSemantic, "'[]' requires an array operand", loc))
	}
	if idx < 0 || idx >= int64(len(arr.Children)) {
		return errResult(diag.NewSub(diag.KindRuntime, diag.SubOutOfBounds, "array index out of bounds", loc))
	}
	val, ferr := v.e.valueFromPattern(arr.Children[idx])
	return exprResultOf(val, ferr)
}

func (v *exprVisitor) VisitSizeof(n *ast.Sizeof) interface{} {
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	if n.Operand != nil {
		val, err := v.sub(n.Operand)
		if err != nil {
			return errResult(err)
		}
		if val.Kind == KindPattern {
			if node, ok := val.Pat.(pattern.Node); ok {
				return okResult(UintValue(node.Common().Size))
			}
		}
		return errResult(diag.New(diag.KindSemantic, "sizeof operand is not a pattern", loc))
	}
	if w := builtinWidth(n.TypeName); w > 0 {
		return okResult(UintValue(uint64(w)))
	}
	if td, ok := v.e.types[n.TypeName]; ok {
		switch {
		case td.Struct != nil:
			// struct size requires a full build; approximate via a
			// zero-offset probe build against the live source.
			pat, size, err := v.e.buildStruct(td.Struct, "", 0, 0, ast.EndianDefault)
			_ = pat
			return exprResultOf(UintValue(size), err)
		case td.Enum != nil:
			underlyingName, _, _, err := v.e.resolveType(td.Enum.Underlying, loc)
			if err != nil {
				return errResult(err)
			}
			return okResult(UintValue(uint64(builtinWidth(underlyingName))))
		}
	}
	return errResult(diag.NewSub(diag.KindSemantic, diag.SubUnknownType, "unknown type in sizeof: "+n.TypeName, loc))
}

func (v *exprVisitor) VisitAddressof(n *ast.Addressof) interface{} {
	loc := diag.Location{File: n.File, Line: n.Line, Column: n.Column}
	val, err := v.sub(n.Operand)
	if err != nil {
		return errResult(err)
	}
	if val.Kind == KindPattern {
		if node, ok := val.Pat.(pattern.Node); ok {
			return okResult(UintValue(node.Common().Offset))
		}
	}
	return errResult(diag.New(diag.KindSemantic, "addressof operand is not a pattern", loc))
}

func (v *exprVisitor) VisitCurrentOffset(n *ast.CurrentOffset) interface{} {
	return okResult(UintValue(v.e.cursor))
}

func (v *exprVisitor) VisitParentExpr(n *ast.ParentExpr) interface{} {
	if p := v.e.currentParent(); p != nil {
		return okResult(PatternValue(p))
	}
	return okResult(Value{Kind: KindVoid})
}

func (v *exprVisitor) VisitThisExpr(n *ast.ThisExpr) interface{} {
	if t := v.e.currentThis(); t != nil {
		return okResult(PatternValue(t))
	}
	return okResult(Value{Kind: KindVoid})
}

// patternLiteral is a synthetic Expr wrapping an already-built pattern
// node, used internally to re-enter VisitMember for pointer auto-deref
// without re-evaluating the pointer expression.
type patternLiteral struct {
	ast.Position
	Node pattern.Node
}

func (p *patternLiteral) Accept(v ast.ExprVisitor) interface{} {
	return okResult(PatternValue(p.Node))
}
