package eval

import (
	"strings"

	"patternlang/internal/ast"
	"patternlang/internal/diag"
)

// typeDef is a resolved type declaration: exactly one of the pointer
// fields is non-nil, except Alias which may chain through another
// typeDef name via resolveAlias.
type typeDef struct {
	Struct   *ast.StructDecl
	Union    *ast.UnionDecl
	Enum     *ast.EnumDecl
	Bitfield *ast.BitfieldDecl
	Alias    *ast.TypeExpr // from a `using Name = Type;`
}

// registerTypes performs the evaluator's first pass (matching
// evaluator.cpp's evaluate()): it walks every declaration, including
// inside namespaces, and registers every type declaration under its
// fully qualified name before any member is evaluated, so forward
// references between types in the same file resolve.
func (e *Evaluator) registerTypes(decls []ast.Decl, prefix []string) error {
	for _, d := range decls {
		switch n := d.(type) {
		case *ast.StructDecl:
			e.types[qualify(prefix, n.Name)] = &typeDef{Struct: n}
			for _, fn := range n.Functions {
				e.funcs[qualify(prefix, n.Name+"::"+fn.Name)] = fn
			}
		case *ast.UnionDecl:
			e.types[qualify(prefix, n.Name)] = &typeDef{Union: n}
		case *ast.EnumDecl:
			e.types[qualify(prefix, n.Name)] = &typeDef{Enum: n}
		case *ast.BitfieldDecl:
			e.types[qualify(prefix, n.Name)] = &typeDef{Bitfield: n}
		case *ast.UsingDecl:
			if n.Type != nil {
				e.types[qualify(prefix, n.Name)] = &typeDef{Alias: n.Type}
			}
		case *ast.FunctionDecl:
			e.funcs[qualify(prefix, n.Name)] = n
		case *ast.NamespaceDecl:
			if err := e.registerTypes(n.Decls, append(append([]string{}, prefix...), n.Path...)); err != nil {
				return err
			}
		}
	}
	return nil
}

func qualify(prefix []string, name string) string {
	if len(prefix) == 0 {
		return name
	}
	return strings.Join(prefix, "::") + "::" + name
}

// resolveType follows `using` alias chains down to the concrete
// typeDef or builtin type name, erroring on a cycle or an unknown name.
// A bare `auto` is only legal for the member it was already restricted
// to by the parser's caller (function parameters and using aliases);
// anywhere else resolveType rejects it.
func (e *Evaluator) resolveType(t *ast.TypeExpr, loc diag.Location) (name string, def *typeDef, builtin bool, err error) {
	seen := map[string]bool{}
	name = t.Name
	for {
		if isBuiltinTypeName(name) {
			if name == "auto" {
				return "", nil, false, diag.NewSub(diag.KindSemantic, diag.SubUnknownType,
					"'auto' is not permitted in member position", loc)
			}
			return name, nil, true, nil
		}
		if seen[name] {
			return "", nil, false, diag.NewSub(diag.KindSemantic, diag.SubUnknownType,
				"cyclic type alias involving "+name, loc)
		}
		seen[name] = true
		td, ok := e.types[name]
		if !ok {
			return "", nil, false, diag.NewSub(diag.KindSemantic, diag.SubUnknownType,
				"unknown type "+name, loc)
		}
		if td.Alias != nil {
			name = td.Alias.Name
			continue
		}
		return name, td, false, nil
	}
}

func isBuiltinTypeName(name string) bool {
	switch name {
	case "u8", "u16", "u32", "u64", "u128",
		"s8", "s16", "s32", "s64", "s128",
		"float", "double", "char", "char16", "bool", "str", "padding", "auto":
		return true
	}
	return false
}

func builtinWidth(name string) int {
	switch name {
	case "u8", "s8", "char", "bool":
		return 1
	case "u16", "s16", "char16":
		return 2
	case "u32", "s32", "float":
		return 4
	case "u64", "s64", "double":
		return 8
	case "u128", "s128":
		return 16
	default:
		return 0
	}
}
