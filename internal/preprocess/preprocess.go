// Package preprocess implements the textual preprocessing stage (C4):
// #include file inclusion with cycle detection, #define macro
// substitution, and #pragma capture onto a side channel the runtime
// facade reads. There is no teacher equivalent for this stage; it is
// built fresh in the lexer/scanner's plain-text-scanning idiom.
package preprocess

import (
	"path/filepath"
	"strings"
	"unicode"

	"patternlang/internal/diag"
)

// FileReader resolves an #include target to its contents, letting the
// caller decide whether includes come from disk, an embedded FS, or a
// fixed in-memory map (as tests do).
type FileReader interface {
	ReadFile(path string) (string, error)
}

// Preprocessor expands #include/#define/#pragma directives over a
// source file, line by line.
type Preprocessor struct {
	Reader      FileReader
	IncludePaths []string
	Pragmas     map[string][]string
	defines     map[string]string
}

// New creates a Preprocessor that resolves includes through reader.
func New(reader FileReader, includePaths []string) *Preprocessor {
	return &Preprocessor{
		Reader:       reader,
		IncludePaths: includePaths,
		Pragmas:      map[string][]string{},
		defines:      map[string]string{},
	}
}

// Process expands directives in source (attributed to file for
// diagnostics) and returns the resulting plain pattern-language text.
func (p *Preprocessor) Process(file, source string) (string, error) {
	return p.process(file, source, nil)
}

func (p *Preprocessor) process(file, source string, stack []string) (string, error) {
	for _, s := range stack {
		if s == file {
			chain := strings.Join(append(stack, file), " -> ")
			return "", diag.NewSub(diag.KindSemantic, diag.SubCyclicInclude,
				"cyclic #include: "+chain, diag.Location{File: file})
		}
	}
	stack = append(stack, file)

	var out strings.Builder
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			out.WriteString(p.expandDefines(line))
			out.WriteString("\n")
			continue
		}

		directive, rest := splitDirective(trimmed[1:])
		switch directive {
		case "include":
			target, err := parseIncludeTarget(rest)
			if err != nil {
				return "", diag.New(diag.KindSemantic, err.Error(), diag.Location{File: file, Line: lineNo})
			}
			resolved, content, err := p.readInclude(file, target)
			if err != nil {
				return "", diag.New(diag.KindSemantic, "cannot resolve #include "+target+": "+err.Error(),
					diag.Location{File: file, Line: lineNo})
			}
			expanded, err := p.process(resolved, content, stack)
			if err != nil {
				return "", err
			}
			out.WriteString(expanded)
			out.WriteString("\n")
		case "define":
			name, value := splitDirective(strings.TrimSpace(rest))
			p.defines[name] = strings.TrimSpace(value)
			out.WriteString("\n")
		case "pragma":
			name, value := splitDirective(strings.TrimSpace(rest))
			p.Pragmas[name] = append(p.Pragmas[name], strings.TrimSpace(value))
			out.WriteString("\n")
		default:
			// unknown directives pass through untouched; the parser will
			// reject them if they turn out not to be valid syntax.
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	return out.String(), nil
}

func splitDirective(s string) (head, rest string) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && !unicode.IsSpace(rune(s[i])) {
		i++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func parseIncludeTarget(rest string) (string, error) {
	rest = strings.TrimSpace(rest)
	if len(rest) >= 2 && rest[0] == '"' && rest[len(rest)-1] == '"' {
		return rest[1 : len(rest)-1], nil
	}
	if len(rest) >= 2 && rest[0] == '<' && rest[len(rest)-1] == '>' {
		return rest[1 : len(rest)-1], nil
	}
	return "", errNoTarget
}

var errNoTarget = errNoTargetErr{}

type errNoTargetErr struct{}

func (errNoTargetErr) Error() string { return "expected \"file\" or <file> after #include" }

func (p *Preprocessor) readInclude(fromFile, target string) (resolvedPath string, content string, err error) {
	candidates := []string{target}
	dir := filepath.Dir(fromFile)
	if dir != "." && dir != "" {
		candidates = append(candidates, filepath.Join(dir, target))
	}
	for _, base := range p.IncludePaths {
		candidates = append(candidates, filepath.Join(base, target))
	}
	var lastErr error
	for _, c := range candidates {
		content, err = p.Reader.ReadFile(c)
		if err == nil {
			return c, content, nil
		}
		lastErr = err
	}
	return "", "", lastErr
}

// expandDefines performs a single left-to-right pass substituting
// whole-word macro names, skipping text inside string/char literals so
// a macro name that happens to appear in a quoted literal is not
// rewritten.
func (p *Preprocessor) expandDefines(line string) string {
	if len(p.defines) == 0 {
		return line
	}
	var out strings.Builder
	i := 0
	for i < len(line) {
		c := line[i]
		if c == '"' || c == '\'' {
			quote := c
			start := i
			i++
			for i < len(line) && line[i] != quote {
				if line[i] == '\\' && i+1 < len(line) {
					i++
				}
				i++
			}
			if i < len(line) {
				i++
			}
			out.WriteString(line[start:i])
			continue
		}
		if isWordStart(c) {
			start := i
			for i < len(line) && isWordChar(line[i]) {
				i++
			}
			word := line[start:i]
			if repl, ok := p.defines[word]; ok {
				out.WriteString(repl)
			} else {
				out.WriteString(word)
			}
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isWordChar(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
