// Package diag implements the error taxonomy used across the pattern
// language runtime: lexer, parser, semantic, and runtime diagnostics
// all share one representation so the facade can render them the same
// way regardless of which component raised them.
package diag

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the top-level error taxonomy from the runtime's error model.
type Kind string

const (
	KindLexer       Kind = "LexerError"
	KindParser      Kind = "ParserError"
	KindSemantic    Kind = "SemanticError"
	KindRuntime     Kind = "RuntimeError"
	KindInterrupted Kind = "Interrupted"
	KindInternal    Kind = "Internal"
)

// SubKind refines a RuntimeError or SemanticError into the specific
// condition that produced it, mirroring the edge cases enumerated
// across the component design.
type SubKind string

const (
	SubNone              SubKind = ""
	SubUnknownType       SubKind = "UnknownType"
	SubOutOfBounds       SubKind = "OutOfBounds"
	SubDivisionByZero    SubKind = "DivisionByZero"
	SubLimitExceeded     SubKind = "LimitExceeded"
	SubRecursionExceeded SubKind = "RecursionExceeded"
	SubUndefinedSymbol   SubKind = "UndefinedSymbol"
	SubDuplicateSymbol   SubKind = "DuplicateSymbol"
	SubCyclicInclude     SubKind = "CyclicInclude"
	SubTypeMismatch      SubKind = "TypeMismatch"
)

// Location pinpoints a diagnostic in a source file.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Frame is one entry of a diagnostic's call stack, used for
// RuntimeError and SemanticError raised from inside a called function.
type Frame struct {
	Function string
	Location Location
}

// Diagnostic is the single error type that crosses every component
// boundary in the runtime. Its Error() rendering mirrors a caret-
// pointed source excerpt the way a compiler-style tool reports
// failures to a terminal.
type Diagnostic struct {
	Kind      Kind
	Sub       SubKind
	Message   string
	Location  Location
	Source    string
	CallStack []Frame
	cause     error
}

// New creates a bare diagnostic of the given kind.
func New(kind Kind, message string, loc Location) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: message, Location: loc}
}

// NewSub creates a diagnostic with a refining sub-kind.
func NewSub(kind Kind, sub SubKind, message string, loc Location) *Diagnostic {
	return &Diagnostic{Kind: kind, Sub: sub, Message: message, Location: loc}
}

// Wrap attaches a causing error (typically from pkg/errors, an I/O
// failure, or a SQL driver error) so the cause chain survives through
// Unwrap/Cause.
func (d *Diagnostic) Wrap(cause error) *Diagnostic {
	d.cause = errors.WithStack(cause)
	return d
}

// WithSource attaches the offending source line for caret rendering.
func (d *Diagnostic) WithSource(source string) *Diagnostic {
	d.Source = source
	return d
}

// WithStack replaces the diagnostic's call stack.
func (d *Diagnostic) WithStack(stack []Frame) *Diagnostic {
	d.CallStack = stack
	return d
}

// AddFrame appends one call-stack frame, innermost call last.
func (d *Diagnostic) AddFrame(function string, loc Location) *Diagnostic {
	d.CallStack = append(d.CallStack, Frame{Function: function, Location: loc})
	return d
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (d *Diagnostic) Unwrap() error { return d.cause }

func (d *Diagnostic) Error() string {
	var sb strings.Builder

	if d.Sub != SubNone {
		fmt.Fprintf(&sb, "%s(%s): %s\n", d.Kind, d.Sub, d.Message)
	} else {
		fmt.Fprintf(&sb, "%s: %s\n", d.Kind, d.Message)
	}

	if d.Location.File != "" || d.Location.Line != 0 {
		fmt.Fprintf(&sb, "  at %s\n", d.Location.String())
		if d.Source != "" {
			prefix := fmt.Sprintf("  %d | ", d.Location.Line)
			fmt.Fprintf(&sb, "\n%s%s\n", prefix, d.Source)
			sb.WriteString(strings.Repeat(" ", len(prefix)))
			if d.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", d.Location.Column-1))
			}
			sb.WriteString("^\n")
		}
	}

	if len(d.CallStack) > 0 {
		sb.WriteString("\ncall stack:\n")
		for _, f := range d.CallStack {
			if f.Function != "" {
				fmt.Fprintf(&sb, "  at %s (%s)\n", f.Function, f.Location)
			} else {
				fmt.Fprintf(&sb, "  at %s\n", f.Location)
			}
		}
	}

	if d.cause != nil {
		fmt.Fprintf(&sb, "caused by: %v\n", d.cause)
	}

	return sb.String()
}

// Interrupted reports whether err is (or wraps) an Interrupted
// diagnostic, the condition a cooperative task checks for after every
// call into the evaluator.
func Interrupted(err error) bool {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Kind == KindInterrupted
	}
	return false
}

// NewInterrupted builds the sentinel diagnostic a Task returns when
// its tick detects a pending cancellation.
func NewInterrupted() *Diagnostic {
	return &Diagnostic{Kind: KindInterrupted, Message: "evaluation was interrupted"}
}
