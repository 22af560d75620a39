package parse

import (
	"patternlang/internal/ast"
	"patternlang/internal/token"
)

// declaration parses one top-level or namespace-scoped declaration.
func (p *Parser) declaration() ast.Decl {
	attrs := p.attributesIfPresent()

	switch {
	case p.match(token.KwStruct):
		return p.structDecl(attrs)
	case p.match(token.KwUnion):
		return p.unionDecl(attrs)
	case p.match(token.KwEnum):
		return p.enumDecl()
	case p.match(token.KwBitfield):
		return p.bitfieldDecl()
	case p.match(token.KwUsing):
		return p.usingDecl()
	case p.match(token.KwFn):
		return p.functionDecl()
	case p.match(token.KwNamespace):
		return p.namespaceDecl()
	case p.check(token.Identifier) && p.peek().Lexeme == "section" && p.checkNext(token.LParen):
		return p.sectionDecl()
	default:
		return p.variableDecl(attrs, true)
	}
}

func (p *Parser) attributesIfPresent() []ast.Attribute {
	var attrs []ast.Attribute
	for p.check(token.LBracket) && p.checkNext(token.LBracket) {
		attrs = append(attrs, p.attributeList()...)
	}
	return attrs
}

// attributeList parses one `[[name(args...), name2, ...]]` block.
func (p *Parser) attributeList() []ast.Attribute {
	p.advance() // first '['
	p.advance() // second '['
	var attrs []ast.Attribute
	for {
		name := p.consume(token.Identifier, "expected attribute name").Lexeme
		var args []ast.Expr
		if p.match(token.LParen) {
			if !p.check(token.RParen) {
				for {
					args = append(args, p.expression())
					if !p.match(token.Comma) {
						break
					}
				}
			}
			p.consume(token.RParen, "expected ')' after attribute arguments")
		}
		attrs = append(attrs, ast.Attribute{Name: name, Args: args})
		if !p.match(token.Comma) {
			break
		}
	}
	p.consume(token.RBracket, "expected ']]' to close attribute list")
	p.consume(token.RBracket, "expected ']]' to close attribute list")
	return attrs
}

func (p *Parser) structDecl(attrs []ast.Attribute) *ast.StructDecl {
	pos := p.pos()
	name := p.consume(token.Identifier, "expected struct name").Lexeme
	d := &ast.StructDecl{Position: pos, Name: name, Attributes: attrs}
	p.consume(token.LBrace, "expected '{' after struct name")
	for !p.check(token.RBrace) && !p.isAtEnd() {
		memberAttrs := p.attributesIfPresent()
		if p.match(token.KwFn) {
			d.Functions = append(d.Functions, p.functionBody(p.pos(), p.consume(token.Identifier, "expected function name").Lexeme))
			continue
		}
		d.Members = append(d.Members, p.variableDecl(memberAttrs, false))
	}
	p.consume(token.RBrace, "expected '}' to close struct body")
	p.match(token.Semicolon)
	return d
}

func (p *Parser) unionDecl(attrs []ast.Attribute) *ast.UnionDecl {
	pos := p.pos()
	name := p.consume(token.Identifier, "expected union name").Lexeme
	d := &ast.UnionDecl{Position: pos, Name: name, Attributes: attrs}
	p.consume(token.LBrace, "expected '{' after union name")
	for !p.check(token.RBrace) && !p.isAtEnd() {
		memberAttrs := p.attributesIfPresent()
		d.Members = append(d.Members, p.variableDecl(memberAttrs, false))
	}
	p.consume(token.RBrace, "expected '}' to close union body")
	p.match(token.Semicolon)
	return d
}

func (p *Parser) enumDecl() *ast.EnumDecl {
	pos := p.pos()
	name := p.consume(token.Identifier, "expected enum name").Lexeme
	d := &ast.EnumDecl{Position: pos, Name: name}
	if p.match(token.Colon) {
		d.Underlying = p.typeExpr()
	} else {
		d.Underlying = &ast.TypeExpr{Name: "u32"}
	}
	p.consume(token.LBrace, "expected '{' after enum name")
	for !p.check(token.RBrace) && !p.isAtEnd() {
		valName := p.consume(token.Identifier, "expected enum member name").Lexeme
		var value ast.Expr
		if p.match(token.Assign) {
			value = p.expression()
		}
		d.Values = append(d.Values, ast.EnumValue{Name: valName, Value: value})
		if !p.match(token.Comma) {
			break
		}
	}
	p.consume(token.RBrace, "expected '}' to close enum body")
	p.match(token.Semicolon)
	return d
}

func (p *Parser) bitfieldDecl() *ast.BitfieldDecl {
	pos := p.pos()
	name := p.consume(token.Identifier, "expected bitfield name").Lexeme
	d := &ast.BitfieldDecl{Position: pos, Name: name}
	p.consume(token.LBrace, "expected '{' after bitfield name")
	for !p.check(token.RBrace) && !p.isAtEnd() {
		fieldPos := p.pos()
		fieldName := p.consume(token.Identifier, "expected bitfield member name").Lexeme
		p.consume(token.Colon, "expected ':' before bitfield width")
		width := p.expression()
		p.consume(token.Semicolon, "expected ';' after bitfield member")
		d.Fields = append(d.Fields, ast.BitfieldField{Position: fieldPos, Name: fieldName, Width: width})
	}
	p.consume(token.RBrace, "expected '}' to close bitfield body")
	p.match(token.Semicolon)
	return d
}

func (p *Parser) usingDecl() *ast.UsingDecl {
	pos := p.pos()
	name := p.consume(token.Identifier, "expected alias name").Lexeme
	d := &ast.UsingDecl{Position: pos, Name: name}
	if p.match(token.Assign) {
		d.Type = p.typeExpr()
	}
	p.consume(token.Semicolon, "expected ';' after using declaration")
	return d
}

func (p *Parser) functionDecl() *ast.FunctionDecl {
	pos := p.pos()
	name := p.consume(token.Identifier, "expected function name").Lexeme
	return p.functionBody(pos, name)
}

func (p *Parser) functionBody(pos ast.Position, name string) *ast.FunctionDecl {
	d := &ast.FunctionDecl{Position: pos, Name: name}
	p.consume(token.LParen, "expected '(' after function name")
	if !p.check(token.RParen) {
		for {
			var param ast.Param
			if p.match(token.KwIn) || p.match(token.KwOut) {
				// direction consumed; auto is only legal here per the
				// restriction on bare `auto` member types.
			}
			param.Type = p.typeExpr()
			param.Name = p.consume(token.Identifier, "expected parameter name").Lexeme
			d.Params = append(d.Params, param)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RParen, "expected ')' after parameters")
	p.consume(token.LBrace, "expected '{' to start function body")
	d.Body = p.block()
	return d
}

func (p *Parser) namespaceDecl() *ast.NamespaceDecl {
	pos := p.pos()
	path := []string{p.consume(token.Identifier, "expected namespace name").Lexeme}
	for p.match(token.ColonColon) {
		path = append(path, p.consume(token.Identifier, "expected name after '::'").Lexeme)
	}
	d := &ast.NamespaceDecl{Position: pos, Path: path}
	p.consume(token.LBrace, "expected '{' after namespace name")
	for !p.check(token.RBrace) && !p.isAtEnd() {
		d.Decls = append(d.Decls, p.declaration())
	}
	p.consume(token.RBrace, "expected '}' to close namespace body")
	return d
}

func (p *Parser) sectionDecl() *ast.SectionDecl {
	pos := p.pos()
	p.advance() // "section" identifier
	p.consume(token.LParen, "expected '(' after 'section'")
	name := p.expression()
	p.consume(token.RParen, "expected ')' after section name")
	d := &ast.SectionDecl{Position: pos, Name: name}
	p.consume(token.LBrace, "expected '{' to start section body")
	for !p.check(token.RBrace) && !p.isAtEnd() {
		d.Body = append(d.Body, p.declaration())
	}
	p.consume(token.RBrace, "expected '}' to close section body")
	return d
}

// variableDecl parses `Type [*] name [: SizeType] [arraySuffix] [@ addr] [attrs];`
// When topLevel is false the declaration is a struct/union member and
// pointer/array suffixes carry the same grammar.
func (p *Parser) variableDecl(attrs []ast.Attribute, topLevel bool) *ast.VariableDecl {
	pos := p.pos()
	typ := p.typeExpr()

	if p.match(token.Star) {
		ptr := &ast.TypeExpr{Position: pos}
		ptr.PointerTo = typ
		typ = ptr
	}

	name := p.consume(token.Identifier, "expected member name").Lexeme

	if typ.PointerTo != nil {
		p.consume(token.Colon, "expected ':' before pointer size type")
		sizeType := p.typeExpr()
		typ.Name = sizeType.Name // the pointer's own width is its size-type's width
	}

	if p.match(token.LBracket) {
		typ.IsArray = true
		if !p.check(token.RBracket) {
			typ.ArraySize = p.expression()
		}
		p.consume(token.RBracket, "expected ']' after array size")
	}

	v := &ast.VariableDecl{Position: pos, Name: name, Type: typ, Attributes: attrs}

	if p.match(token.At) {
		v.PlacementAddr = p.expression()
	}

	v.Attributes = append(v.Attributes, p.attributesIfPresent()...)
	p.consume(token.Semicolon, "expected ';' after member declaration")
	return v
}

// block parses a brace-delimited statement list, consuming the
// closing brace.
func (p *Parser) block() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.check(token.RBrace) && !p.isAtEnd() {
		stmts = append(stmts, p.statement())
	}
	p.consume(token.RBrace, "expected '}' to close block")
	return stmts
}
