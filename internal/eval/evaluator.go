package eval

import (
	"patternlang/internal/ast"
	"patternlang/internal/diag"
	"patternlang/internal/pattern"
	"patternlang/internal/source"
)

// Options configures one evaluation run: default endianness and the
// limits that bound a pathological pattern from hanging or exhausting
// memory (§5's pattern/recursion ceilings).
type Options struct {
	DefaultEndian pattern.Endian
	MaxPatterns   int
	MaxRecursion  int
	// Tick is called at every loop back-edge and before constructing
	// each pattern; returning a non-nil error aborts evaluation. The
	// Task Manager wires this to its cooperative-interrupt check.
	Tick func() error
}

func (o Options) withDefaults() Options {
	if o.MaxPatterns == 0 {
		o.MaxPatterns = 1_000_000
	}
	if o.MaxRecursion == 0 {
		o.MaxRecursion = 256
	}
	if o.Tick == nil {
		o.Tick = func() error { return nil }
	}
	return o
}

// LogRecord is one entry of an evaluation's console log. No
// statement, expression or built-in function of the language appends
// to the log, so Result.Log is always empty.
type LogRecord struct {
	Level   string
	Message string
}

// Section is the named pattern sub-tree produced by a
// `section(name) { ... }` block. Its body is laid out over the primary
// data source starting at offset 0; Data is not filled, and sections
// are keyed by name only, with no numeric IDs.
type Section struct {
	Name     string
	Data     []byte
	Patterns []pattern.Node
}

// Result is everything one evaluation run produced.
type Result struct {
	Patterns []pattern.Node
	Sections map[string]*Section
	Log      []LogRecord
}

// Evaluator walks an ast.Program against a source.Source and builds a
// Pattern Tree, following evaluator.cpp's two-pass design: register
// every type first, then evaluate top-level placed variables in
// order.
type Evaluator struct {
	types map[string]*typeDef
	funcs map[string]*ast.FunctionDecl

	src    source.Source
	opts   Options
	cursor uint64

	patternCount int
	log          []LogRecord
	sections     map[string]*Section

	// thisChain tracks the struct/union currently under construction,
	// innermost last, so `this`/`parent` expressions inside a member's
	// array-size or placement-address expression resolve against the
	// enclosing pattern being built.
	thisChain []pattern.Node

	// inVars holds host-supplied `in` values (the facade's execute/
	// submit in-vars), consulted by VisitIdentifier as a last resort
	// after the scope chain and sibling lookup.
	inVars map[string]Value
}

// SetInVars installs the host-supplied input variables a program's
// top-level expressions may reference by name.
func (e *Evaluator) SetInVars(vars map[string]Value) { e.inVars = vars }

func (e *Evaluator) pushThis(n pattern.Node) { e.thisChain = append(e.thisChain, n) }
func (e *Evaluator) popThis()                { e.thisChain = e.thisChain[:len(e.thisChain)-1] }

func (e *Evaluator) currentThis() pattern.Node {
	if len(e.thisChain) == 0 {
		return nil
	}
	return e.thisChain[len(e.thisChain)-1]
}

func (e *Evaluator) currentParent() pattern.Node {
	if len(e.thisChain) < 2 {
		return nil
	}
	return e.thisChain[len(e.thisChain)-2]
}

// New creates an Evaluator over src with opts (zero-valued fields take
// their documented default).
func New(src source.Source, opts Options) *Evaluator {
	return &Evaluator{
		types:    map[string]*typeDef{},
		funcs:    map[string]*ast.FunctionDecl{},
		src:      src,
		opts:     opts.withDefaults(),
		cursor:   src.BaseAddress(),
		sections: map[string]*Section{},
	}
}

// Evaluate runs both passes over prog and returns the resulting
// Pattern Tree, or the first diagnostic raised.
func (e *Evaluator) Evaluate(prog *ast.Program) (*Result, error) {
	if err := e.registerTypes(prog.Decls, nil); err != nil {
		return nil, err
	}

	var patterns []pattern.Node
	for _, d := range prog.Decls {
		if err := e.opts.Tick(); err != nil {
			return nil, err
		}
		switch n := d.(type) {
		case *ast.VariableDecl:
			pat, err := e.evaluateTopLevelVariable(n)
			if err != nil {
				return nil, err
			}
			if pat != nil {
				patterns = append(patterns, pat)
			}
		case *ast.SectionDecl:
			sec, err := e.evaluateSection(n)
			if err != nil {
				return nil, err
			}
			e.sections[sec.Name] = sec
		default:
			// struct/union/enum/bitfield/using/fn/namespace declarations
			// were fully consumed by registerTypes; nothing left to do.
		}
	}

	return &Result{Patterns: patterns, Sections: e.sections, Log: e.log}, nil
}

func (e *Evaluator) evaluateTopLevelVariable(v *ast.VariableDecl) (pattern.Node, error) {
	offset := e.cursor
	if v.PlacementAddr != nil {
		addr, err := e.evalConstExpr(v.PlacementAddr, nil)
		if err != nil {
			return nil, err
		}
		offset = addr.AsUint64()
	}
	pat, size, err := e.buildMember(v, offset, nil, 0, ast.EndianDefault)
	if err != nil {
		return nil, err
	}
	if pat != nil {
		e.cursor = offset + size
	}
	return pat, nil
}

func (e *Evaluator) evaluateSection(s *ast.SectionDecl) (*Section, error) {
	nameVal, err := e.evalConstExpr(s.Name, nil)
	if err != nil {
		return nil, err
	}
	sec := &Section{Name: nameVal.Str}
	savedCursor := e.cursor
	e.cursor = 0
	defer func() { e.cursor = savedCursor }()

	for _, d := range s.Body {
		if v, ok := d.(*ast.VariableDecl); ok {
			pat, err := e.evaluateTopLevelVariable(v)
			if err != nil {
				return nil, err
			}
			if pat != nil {
				sec.Patterns = append(sec.Patterns, pat)
			}
		}
	}
	return sec, nil
}

// checkLimits enforces the pattern-count ceiling before constructing
// one more pattern node, and the recursion-depth ceiling before
// descending into a nested struct/union/array member.
func (e *Evaluator) checkLimits(depth int) error {
	e.patternCount++
	if e.patternCount > e.opts.MaxPatterns {
		return diag.NewSub(diag.KindRuntime, diag.SubLimitExceeded,
			"pattern count limit exceeded", diag.Location{})
	}
	if depth > e.opts.MaxRecursion {
		return diag.NewSub(diag.KindRuntime, diag.SubRecursionExceeded,
			"recursion depth limit exceeded", diag.Location{})
	}
	return nil
}

func (e *Evaluator) logf(level, msg string) {
	e.log = append(e.log, LogRecord{Level: level, Message: msg})
}
