package parse

import (
	"patternlang/internal/ast"
	"patternlang/internal/token"
)

var builtinTypes = map[token.Kind]string{
	token.TyU8: "u8", token.TyU16: "u16", token.TyU32: "u32", token.TyU64: "u64", token.TyU128: "u128",
	token.TyS8: "s8", token.TyS16: "s16", token.TyS32: "s32", token.TyS64: "s64", token.TyS128: "s128",
	token.TyFloat: "float", token.TyDouble: "double", token.TyChar: "char", token.TyChar16: "char16",
	token.TyBool: "bool", token.TyStr: "str", token.TyPadding: "padding", token.TyAuto: "auto",
}

// typeExpr parses a base type name (builtin or custom, optionally
// qualified with ::) with an optional be/le endianness prefix. Pointer
// and array suffixes are parsed by the caller once the member name is
// known, matching the grammar's `Type *name : SizeType [n] @ addr;`
// shape.
func (p *Parser) typeExpr() *ast.TypeExpr {
	pos := p.pos()
	endian := ast.EndianDefault
	if p.match(token.KwBE) {
		endian = ast.EndianBig
	} else if p.match(token.KwLE) {
		endian = ast.EndianLittle
	}

	if name, ok := builtinTypes[p.peek().Kind]; ok {
		p.advance()
		return &ast.TypeExpr{Position: pos, Name: name, Endian: endian}
	}

	path := []string{p.consume(token.Identifier, "expected type name").Lexeme}
	for p.match(token.ColonColon) {
		path = append(path, p.consume(token.Identifier, "expected name after '::'").Lexeme)
	}
	if len(path) == 1 {
		return &ast.TypeExpr{Position: pos, Name: path[0], Endian: endian}
	}
	return &ast.TypeExpr{Position: pos, Name: path[len(path)-1], Path: path, Endian: endian}
}
