package preprocess

import (
	"fmt"
	"strings"
	"testing"
)

type mapReader map[string]string

func (m mapReader) ReadFile(path string) (string, error) {
	if s, ok := m[path]; ok {
		return s, nil
	}
	return "", fmt.Errorf("no such file: %s", path)
}

func TestDefineSubstitution(t *testing.T) {
	p := New(mapReader{}, nil)
	out, err := p.Process("main.hexpat", "#define SIZE 16\nu8 data[SIZE];\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "u8 data[16];") {
		t.Fatalf("expected macro substitution, got: %q", out)
	}
}

func TestIncludeResolution(t *testing.T) {
	reader := mapReader{"common.hexpat": "struct Common { u32 magic; };\n"}
	p := New(reader, nil)
	out, err := p.Process("main.hexpat", "#include \"common.hexpat\"\nCommon c @ 0x0;\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "struct Common") {
		t.Fatalf("expected included content, got: %q", out)
	}
}

func TestCyclicIncludeDetected(t *testing.T) {
	reader := mapReader{
		"a.hexpat": "#include \"b.hexpat\"\n",
		"b.hexpat": "#include \"a.hexpat\"\n",
	}
	p := New(reader, nil)
	_, err := p.Process("a.hexpat", reader["a.hexpat"])
	if err == nil {
		t.Fatal("expected cyclic include error")
	}
}

func TestPragmaCaptured(t *testing.T) {
	p := New(mapReader{}, nil)
	_, err := p.Process("main.hexpat", "#pragma endian big\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Pragmas["endian"]; len(got) != 1 || got[0] != "big" {
		t.Fatalf("expected pragma endian=big, got %v", p.Pragmas)
	}
}

func TestQuotedTextNotSubstituted(t *testing.T) {
	p := New(mapReader{}, nil)
	out, err := p.Process("main.hexpat", "#define SIZE 16\nchar s[] = \"SIZE\";\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "\"SIZE\"") {
		t.Fatalf("expected literal SIZE preserved inside string, got: %q", out)
	}
}
