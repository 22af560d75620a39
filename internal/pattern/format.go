// Tree-dump formatter, adapted from internal/formatter/formatter.go's
// recursive type-switch writer over a strings.Builder with indent
// tracking, retargeted from printing AST statements to printing a
// built Pattern Tree.
package pattern

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Formatter renders a Pattern Tree as an indented, human-readable
// listing: offset, size, type and name per line, nested children
// indented beneath their parent.
type Formatter struct {
	indent    int
	indentStr string
	output    strings.Builder
	// Colorize, when set, wraps the type keyword of each line in an
	// ANSI color escape. Callers should only set this when the
	// destination is a real terminal.
	Colorize bool
}

const (
	ansiTypeColor = "\033[36m" // cyan
	ansiReset     = "\033[0m"
)

// NewFormatter creates a Formatter using 2-space indentation.
func NewFormatter() *Formatter {
	return &Formatter{indentStr: "  "}
}

// Format renders every top-level pattern and returns the listing.
func (f *Formatter) Format(nodes []Node) string {
	f.output.Reset()
	f.indent = 0
	for _, n := range nodes {
		f.formatNode(n)
	}
	return f.output.String()
}

func (f *Formatter) writeIndent() {
	for i := 0; i < f.indent; i++ {
		f.output.WriteString(f.indentStr)
	}
}

func (f *Formatter) header(c *Common, kind string) {
	f.writeIndent()
	if f.Colorize {
		kind = ansiTypeColor + kind + ansiReset
	}
	fmt.Fprintf(&f.output, "%s %s @ 0x%08x [%s]", kind, c.Name, c.Offset, humanize.Bytes(c.Size))
	if c.Comment != "" {
		fmt.Fprintf(&f.output, "  // %s", c.Comment)
	}
	if c.OutOfBounds {
		marker := " <out of bounds>"
		if f.Colorize {
			marker = "\033[31m" + marker + ansiReset
		}
		f.output.WriteString(marker)
	}
	f.output.WriteString("\n")
}

func (f *Formatter) formatNode(n Node) {
	if n.Common().Visibility == Hidden {
		return
	}
	switch v := n.(type) {
	case *Unsigned:
		f.header(&v.Common, fmt.Sprintf("u%d", v.Width*8))
	case *Signed:
		f.header(&v.Common, fmt.Sprintf("s%d", v.Width*8))
	case *Float:
		name := "float"
		if v.Width == 8 {
			name = "double"
		}
		f.header(&v.Common, name)
	case *Character:
		f.header(&v.Common, "char")
	case *Boolean:
		f.header(&v.Common, "bool")
	case *StringPattern:
		f.header(&v.Common, "str")
	case *Padding:
		f.header(&v.Common, "padding")
	case *Enum:
		name := v.ValueName()
		if name == "" {
			name = fmt.Sprintf("0x%x", v.Lo)
		}
		f.header(&v.Common, fmt.Sprintf("enum %s (%s)", v.TypeName, name))
	case *Bitfield:
		f.header(&v.Common, fmt.Sprintf("bitfield %s", v.TypeName))
		f.indent++
		for _, field := range v.Fields {
			f.writeIndent()
			fmt.Fprintf(&f.output, "%s : %d = 0x%x\n", field.Name, field.BitWidth, field.Value)
		}
		f.indent--
	case *Pointer:
		f.header(&v.Common, fmt.Sprintf("%s*", v.TypeName))
		if v.Pointee != nil {
			f.indent++
			f.formatNode(v.Pointee)
			f.indent--
		}
	case *Array:
		f.header(&v.Common, fmt.Sprintf("%s[%d]", v.ElementType, len(v.Children)))
		f.indent++
		for _, c := range v.Children {
			f.formatNode(c)
		}
		f.indent--
	case *Struct:
		f.header(&v.Common, fmt.Sprintf("struct %s", v.TypeName))
		f.indent++
		for _, c := range v.Children {
			f.formatNode(c)
		}
		f.indent--
	case *Union:
		f.header(&v.Common, fmt.Sprintf("union %s", v.TypeName))
		f.indent++
		for _, c := range v.Children {
			f.formatNode(c)
		}
		f.indent--
	}
}
