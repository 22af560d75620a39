package parse

import (
	"testing"

	"patternlang/internal/token"
)

func parseString(t *testing.T, src string) (prog_ok bool, err error) {
	t.Helper()
	scanner := token.NewScanner("test.hexpat", src)
	tokens, serr := scanner.ScanTokens()
	if serr != nil {
		return false, serr
	}
	_, perr := New("test.hexpat", src, tokens).Parse()
	return perr == nil, perr
}

func assertParseSuccess(t *testing.T, src string) {
	t.Helper()
	ok, err := parseString(t, src)
	if !ok {
		t.Fatalf("expected parse success, got error: %v", err)
	}
}

func assertParseError(t *testing.T, src string) {
	t.Helper()
	ok, _ := parseString(t, src)
	if ok {
		t.Fatalf("expected parse error, got success for: %s", src)
	}
}

func TestStructDeclarations(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		shouldPass bool
	}{
		{"simple struct", `struct Header { u32 magic; u16 version; };`, true},
		{"nested struct member", `struct Header { u32 magic; }; struct File { Header hdr; u8 data[16]; };`, true},
		{"missing semicolon", `struct Header { u32 magic }`, false},
		{"array with sibling size", `struct Blob { u32 count; u8 data[count]; };`, true},
		{"placed variable", `struct Header { u32 magic; }; Header at_zero @ 0x0;`, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.shouldPass {
				assertParseSuccess(t, c.input)
			} else {
				assertParseError(t, c.input)
			}
		})
	}
}

func TestUnionEnumBitfield(t *testing.T) {
	assertParseSuccess(t, `union U { u32 asInt; float asFloat; };`)
	assertParseSuccess(t, `enum Color : u8 { Red = 0, Green = 1, Blue = 2 };`)
	assertParseSuccess(t, `bitfield Flags { enabled : 1; mode : 3; reserved : 4; };`)
}

func TestFunctionsAndControlFlow(t *testing.T) {
	assertParseSuccess(t, `fn twice(u32 x) { return x * 2; }`)
	assertParseSuccess(t, `fn clamp(u32 x) { if (x > 10) { return 10; } else { return x; } }`)
	assertParseSuccess(t, `fn loopSum() { u32 total = 0; for (u32 i = 0; i < 10; i = i + 1) { total = total + i; } return total; }`)
}

func TestExpressionsAndAttributes(t *testing.T) {
	assertParseSuccess(t, `struct S { u32 x [[format("hex")]]; };`)
	assertParseSuccess(t, `struct S { u32 x; u8 data[x + 1 == 2 ? 1 : 0]; };`)
	assertParseError(t, `struct S { u32 x; ; };`)
}

func TestUsingAndNamespace(t *testing.T) {
	assertParseSuccess(t, `using MyInt = u32;`)
	assertParseSuccess(t, `namespace formats { struct Header { u32 magic; }; }`)
}
