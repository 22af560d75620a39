package parse

import (
	"patternlang/internal/ast"
	"patternlang/internal/token"
)

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(token.KwIf):
		return p.ifStatement()
	case p.match(token.KwWhile):
		return p.whileStatement()
	case p.match(token.KwFor):
		return p.forStatement()
	case p.match(token.KwReturn):
		return p.returnStatement()
	case p.match(token.KwBreak):
		s := &ast.BreakStmt{Position: p.posOfPrev()}
		p.consume(token.Semicolon, "expected ';' after 'break'")
		return s
	case p.match(token.KwContinue):
		s := &ast.ContinueStmt{Position: p.posOfPrev()}
		p.consume(token.Semicolon, "expected ';' after 'continue'")
		return s
	case p.isLocalVarDecl():
		return p.localVarStatement()
	default:
		pos := p.pos()
		e := p.expression()
		p.consume(token.Semicolon, "expected ';' after expression")
		return &ast.ExprStmt{Position: pos, Expr: e}
	}
}

func (p *Parser) posOfPrev() ast.Position {
	t := p.previous()
	return ast.Position{File: t.File, Line: t.Line, Column: t.Column}
}

// isLocalVarDecl looks ahead for "<type-looking-token> Identifier" to
// disambiguate a local declaration from a bare expression statement,
// the same lookahead-and-no-rewind-needed trick the teacher's parser
// uses for statement/expression disambiguation.
func (p *Parser) isLocalVarDecl() bool {
	if _, ok := builtinTypes[p.peek().Kind]; ok {
		return p.checkNext(token.Identifier) || p.checkNext(token.Star)
	}
	if p.check(token.Identifier) {
		return p.checkNext(token.Identifier)
	}
	return false
}

func (p *Parser) localVarStatement() ast.Stmt {
	pos := p.pos()
	typ := p.typeExpr()
	if p.match(token.Star) {
		typ = &ast.TypeExpr{Position: pos, PointerTo: typ}
	}
	name := p.consume(token.Identifier, "expected variable name").Lexeme
	v := &ast.VarStmt{Position: pos, Name: name, Type: typ}
	if p.match(token.Assign) {
		v.Init = p.expression()
	}
	p.consume(token.Semicolon, "expected ';' after variable declaration")
	return v
}

func (p *Parser) ifStatement() ast.Stmt {
	pos := p.posOfPrev()
	p.consume(token.LParen, "expected '(' after 'if'")
	cond := p.expression()
	p.consume(token.RParen, "expected ')' after condition")
	p.consume(token.LBrace, "expected '{' to start if body")
	then := p.block()
	var els []ast.Stmt
	if p.match(token.KwElse) {
		if p.match(token.KwIf) {
			els = []ast.Stmt{p.ifStatement()}
		} else {
			p.consume(token.LBrace, "expected '{' to start else body")
			els = p.block()
		}
	}
	return &ast.IfStmt{Position: pos, Cond: cond, Then: then, Else: els}
}

func (p *Parser) whileStatement() ast.Stmt {
	pos := p.posOfPrev()
	p.consume(token.LParen, "expected '(' after 'while'")
	cond := p.expression()
	p.consume(token.RParen, "expected ')' after condition")
	p.consume(token.LBrace, "expected '{' to start while body")
	return &ast.WhileStmt{Position: pos, Cond: cond, Body: p.block()}
}

func (p *Parser) forStatement() ast.Stmt {
	pos := p.posOfPrev()
	p.consume(token.LParen, "expected '(' after 'for'")
	var init ast.Stmt
	if !p.check(token.Semicolon) {
		init = p.localVarStatement()
	} else {
		p.advance()
	}
	var cond ast.Expr
	if !p.check(token.Semicolon) {
		cond = p.expression()
	}
	p.consume(token.Semicolon, "expected ';' after for condition")
	var update ast.Stmt
	if !p.check(token.RParen) {
		updatePos := p.pos()
		update = &ast.ExprStmt{Position: updatePos, Expr: p.expression()}
	}
	p.consume(token.RParen, "expected ')' after for clauses")
	p.consume(token.LBrace, "expected '{' to start for body")
	return &ast.ForStmt{Position: pos, Init: init, Cond: cond, Update: update, Body: p.block()}
}

func (p *Parser) returnStatement() ast.Stmt {
	pos := p.posOfPrev()
	var val ast.Expr
	if !p.check(token.Semicolon) {
		val = p.expression()
	}
	p.consume(token.Semicolon, "expected ';' after return value")
	return &ast.ReturnStmt{Position: pos, Value: val}
}
