package ast

// Decl is a top-level or namespace-scoped declaration.
type Decl interface {
	Node
	declNode()
}

// Attribute is a `[[name("arg", ...)]]` annotation attached to a
// member or type declaration (format, transform, hidden, color, ...).
type Attribute struct {
	Name string
	Args []Expr
}

// TypeExpr references a type by name, optionally qualified, with an
// optional array suffix and an optional endianness override (`be`/`le`
// per §3.1's keyword set).
type TypeExpr struct {
	Position
	Name       string  // built-in ("u32") or custom ("MyStruct")
	Path       []string // non-empty for `Namespace::Name`
	PointerTo  *TypeExpr
	ArraySize  Expr // nil when not an array, or for an unsized `[]` array
	IsArray    bool
	Endian     Endian // EndianDefault unless `be`/`le` is specified
}

// Endian overrides the runtime's default byte order for one type use.
type Endian int

const (
	EndianDefault Endian = iota
	EndianBig
	EndianLittle
)

// VariableDecl is one struct/union member, or a top-level placed
// variable, depending on where it appears.
type VariableDecl struct {
	Position
	Name       string
	Type       *TypeExpr
	Attributes []Attribute
	// PlacementAddr is non-nil when the declaration pins an absolute
	// offset ("Type name @ address;") instead of following the cursor.
	PlacementAddr Expr
	InParam       bool // `in` parameter on a function-local declaration
	OutParam      bool
}

func (*VariableDecl) declNode() {}

// StructDecl declares a struct type: contiguous members, byte offset
// advances by each member's size.
type StructDecl struct {
	Position
	Name       string
	Members    []*VariableDecl
	Functions  []*FunctionDecl
	Attributes []Attribute
}

func (*StructDecl) declNode() {}

// UnionDecl declares a union type: every member starts at the same
// offset, size is the maximum member size.
type UnionDecl struct {
	Position
	Name       string
	Members    []*VariableDecl
	Attributes []Attribute
}

func (*UnionDecl) declNode() {}

// EnumValue is one `Name = expr` entry of an enum body.
type EnumValue struct {
	Name  string
	Value Expr // nil means "previous value + 1" (or 0 for the first entry)
}

// EnumDecl declares an enum type over an underlying built-in type
// (u32 when the declaration names none).
type EnumDecl struct {
	Position
	Name     string
	Underlying *TypeExpr
	Values   []EnumValue
}

func (*EnumDecl) declNode() {}

// BitfieldField is one named, fixed-width field of a bitfield body.
type BitfieldField struct {
	Position
	Name  string
	Width Expr // width in bits
}

// BitfieldDecl declares a bitfield type: fields packed from the first
// bit, byte window sized by pattern.BitfieldByteSize(totalBits).
type BitfieldDecl struct {
	Position
	Name   string
	Fields []BitfieldField
}

func (*BitfieldDecl) declNode() {}

// UsingDecl is a type alias: `using Name = Type;`, or a forward
// declaration `using Name;` resolved later in the same file.
type UsingDecl struct {
	Position
	Name string
	Type *TypeExpr // nil for a forward declaration
}

func (*UsingDecl) declNode() {}

// Param is one function parameter; only `in`/`out`/plain and `auto`
// are meaningful per §9's restriction on `auto`.
type Param struct {
	Name string
	Type *TypeExpr
}

// FunctionDecl declares a callable used from the `format` attribute
// hook or invoked directly from an expression; there is no `transform`
// hook.
type FunctionDecl struct {
	Position
	Name   string
	Params []Param
	Body   []Stmt
}

func (*FunctionDecl) declNode() {}

// NamespaceDecl groups declarations under a dotted/`::`-joined name.
type NamespaceDecl struct {
	Position
	Path  []string
	Decls []Decl
}

func (*NamespaceDecl) declNode() {}

// SectionDecl declares a named pattern sub-tree, reachable later via
// the runtime facade's section listing.
type SectionDecl struct {
	Position
	Name  Expr
	Body  []Decl
}

func (*SectionDecl) declNode() {}

// Program is a whole compilation unit: every top-level declaration in
// source order, plus any top-level placed VariableDecls which the
// evaluator evaluates in its second pass.
type Program struct {
	Decls []Decl
}
