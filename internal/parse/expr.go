package parse

import (
	"patternlang/internal/ast"
	"patternlang/internal/token"
)

func (p *Parser) expression() ast.Expr {
	return p.assignment()
}

func (p *Parser) assignment() ast.Expr {
	expr := p.ternary()
	if p.match(token.Assign) {
		pos := p.posOfPrev()
		value := p.assignment()
		return &ast.Assign{Position: pos, Target: expr, Value: value}
	}
	return expr
}

func (p *Parser) ternary() ast.Expr {
	cond := p.binary(1)
	if p.match(token.Question) {
		pos := p.posOfPrev()
		then := p.assignment()
		p.consume(token.Colon, "expected ':' in ternary expression")
		els := p.assignment()
		return &ast.Ternary{Position: pos, Cond: cond, Then: then, Else: els}
	}
	return cond
}

// binary implements Pratt precedence climbing over the table in
// parser.go, starting at minPrec.
func (p *Parser) binary(minPrec int) ast.Expr {
	left := p.unary()
	for {
		prec, ok := precedence[p.peek().Kind]
		if !ok || prec < minPrec {
			return left
		}
		opTok := p.advance()
		right := p.binary(prec + 1)
		left = &ast.Binary{
			Position: ast.Position{File: opTok.File, Line: opTok.Line, Column: opTok.Column},
			Op:       string(opTok.Kind), Left: left, Right: right,
		}
	}
}

func (p *Parser) unary() ast.Expr {
	if p.match(token.Minus, token.Not, token.Tilde, token.Amp, token.Star) {
		opTok := p.previous()
		operand := p.unary()
		return &ast.Unary{
			Position: ast.Position{File: opTok.File, Line: opTok.Line, Column: opTok.Column},
			Op:       string(opTok.Kind), Operand: operand,
		}
	}
	if p.match(token.KwSizeof) {
		pos := p.posOfPrev()
		p.consume(token.LParen, "expected '(' after 'sizeof'")
		if name, ok := builtinTypes[p.peek().Kind]; ok {
			p.advance()
			p.consume(token.RParen, "expected ')' after sizeof operand")
			return &ast.Sizeof{Position: pos, TypeName: name}
		}
		if p.check(token.Identifier) && p.checkNext(token.RParen) {
			name := p.advance().Lexeme
			p.consume(token.RParen, "expected ')' after sizeof operand")
			return &ast.Sizeof{Position: pos, TypeName: name}
		}
		operand := p.expression()
		p.consume(token.RParen, "expected ')' after sizeof operand")
		return &ast.Sizeof{Position: pos, Operand: operand}
	}
	if p.match(token.KwAddressof) {
		pos := p.posOfPrev()
		p.consume(token.LParen, "expected '(' after 'addressof'")
		operand := p.expression()
		p.consume(token.RParen, "expected ')' after addressof operand")
		return &ast.Addressof{Position: pos, Operand: operand}
	}
	return p.postfix()
}

func (p *Parser) postfix() ast.Expr {
	expr := p.primary()
	for {
		switch {
		case p.match(token.Dot):
			field := p.consume(token.Identifier, "expected member name after '.'").Lexeme
			expr = &ast.Member{Position: p.posOfPrev(), Object: expr, Field: field}
		case p.match(token.LBracket):
			pos := p.posOfPrev()
			idx := p.expression()
			p.consume(token.RBracket, "expected ']' after index")
			expr = &ast.Index{Position: pos, Object: expr, Index: idx}
		default:
			return expr
		}
	}
}

func (p *Parser) primary() ast.Expr {
	pos := p.pos()
	switch {
	case p.match(token.IntLit):
		t := p.previous()
		return &ast.IntLiteral{Position: pos, Hi: t.IntHigh, Lo: t.IntValue, Signed: t.IntSigned}
	case p.match(token.FloatLit):
		return &ast.FloatLiteral{Position: pos, Value: p.previous().FloatValue}
	case p.match(token.CharLit):
		return &ast.CharLiteral{Position: pos, Value: p.previous().CharValue}
	case p.match(token.StringLit):
		return &ast.StringLiteral{Position: pos, Value: p.previous().StringValue}
	case p.match(token.KwTrue):
		return &ast.BoolLiteral{Position: pos, Value: true}
	case p.match(token.KwFalse):
		return &ast.BoolLiteral{Position: pos, Value: false}
	case p.match(token.Dollar):
		return &ast.CurrentOffset{Position: pos}
	case p.match(token.KwParent):
		return &ast.ParentExpr{Position: pos}
	case p.match(token.KwThis):
		return &ast.ThisExpr{Position: pos}
	case p.match(token.LParen):
		e := p.expression()
		p.consume(token.RParen, "expected ')' after expression")
		return e
	case p.check(token.Identifier):
		name := p.advance().Lexeme
		path := []string{name}
		for p.match(token.ColonColon) {
			path = append(path, p.consume(token.Identifier, "expected name after '::'").Lexeme)
		}
		if len(path) > 1 {
			return &ast.ScopeResolution{Position: pos, Path: path}
		}
		if p.match(token.LParen) {
			var args []ast.Expr
			if !p.check(token.RParen) {
				for {
					args = append(args, p.expression())
					if !p.match(token.Comma) {
						break
					}
				}
			}
			p.consume(token.RParen, "expected ')' after call arguments")
			return &ast.Call{Position: pos, Callee: name, Args: args}
		}
		return &ast.Identifier{Position: pos, Name: name}
	default:
		p.fail("expected expression")
		panic("unreachable")
	}
}
