package eval

import (
	"errors"
	"testing"

	"patternlang/internal/ast"
	"patternlang/internal/parse"
	"patternlang/internal/pattern"
	"patternlang/internal/source"
	"patternlang/internal/token"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	scanner := token.NewScanner("test.hexpat", src)
	tokens, err := scanner.ScanTokens()
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	prog, err := parse.New("test.hexpat", src, tokens).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog
}

func evalSource(t *testing.T, data []byte, src string) (*Result, error) {
	t.Helper()
	prog := mustParse(t, src)
	ev := New(source.NewMemorySource(data), Options{})
	return ev.Evaluate(prog)
}

func TestPrimitivePlacement(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78}
	res, err := evalSource(t, data, `u32 magic @ 0x0;`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(res.Patterns))
	}
	u, ok := res.Patterns[0].(*pattern.Unsigned)
	if !ok {
		t.Fatalf("expected *pattern.Unsigned, got %T", res.Patterns[0])
	}
	if u.Common.Offset != 0 || u.Common.Size != 4 {
		t.Fatalf("unexpected placement: offset=%d size=%d", u.Common.Offset, u.Common.Size)
	}
}

func TestStructWithPadding(t *testing.T) {
	data := make([]byte, 16)
	data[0] = 0xAB
	data[8] = 0x01
	src := `
struct Header {
	u8 tag;
	padding pad[7];
	u8 flag;
};
Header hdr @ 0x0;
`
	res, err := evalSource(t, data, src)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	s, ok := res.Patterns[0].(*pattern.Struct)
	if !ok {
		t.Fatalf("expected *pattern.Struct, got %T", res.Patterns[0])
	}
	if len(s.Children) != 3 {
		t.Fatalf("expected 3 members (tag, padding, flag), got %d", len(s.Children))
	}
	pad, ok := s.Children[1].(*pattern.Array)
	if !ok {
		t.Fatalf("expected *pattern.Array, got %T", s.Children[1])
	}
	if pad.Common.Size != 7 || len(pad.Children) != 7 {
		t.Fatalf("expected 7-byte padding array, got size=%d children=%d", pad.Common.Size, len(pad.Children))
	}
	flag := s.Children[2].Common()
	if flag.Offset != 8 {
		t.Fatalf("expected flag at offset 8, got %d", flag.Offset)
	}
	if s.Common.Size != 9 {
		t.Fatalf("expected struct size 9, got %d", s.Common.Size)
	}
}

func TestArrayOfS8IsString(t *testing.T) {
	data := []byte("hi!\x00rest")
	res, err := evalSource(t, data, `s8 greeting[4] @ 0x0;`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, ok := res.Patterns[0].(*pattern.StringPattern); !ok {
		t.Fatalf("expected s8[N>1] to build as *pattern.StringPattern, got %T", res.Patterns[0])
	}
}

func TestPointerDereference(t *testing.T) {
	// byte 0: pointer value (offset of pointee, little-endian u8 width)
	// byte 1: the pointee u8
	data := []byte{0x01, 0x2A}
	src := `u8* ptr : u8 @ 0x0;`
	res, err := evalSource(t, data, src)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	p, ok := res.Patterns[0].(*pattern.Pointer)
	if !ok {
		t.Fatalf("expected *pattern.Pointer, got %T", res.Patterns[0])
	}
	pointee, ok := p.Pointee.(*pattern.Unsigned)
	if !ok {
		t.Fatalf("expected pointee *pattern.Unsigned, got %T", p.Pointee)
	}
	if pointee.Common.Offset != 1 {
		t.Fatalf("expected pointee at offset 1, got %d", pointee.Common.Offset)
	}
}

func TestBitfieldSizing(t *testing.T) {
	data := []byte{0b1010_0101}
	src := `
bitfield Flags {
	a : 3;
	b : 5;
};
Flags f @ 0x0;
`
	res, err := evalSource(t, data, src)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	bf, ok := res.Patterns[0].(*pattern.Bitfield)
	if !ok {
		t.Fatalf("expected *pattern.Bitfield, got %T", res.Patterns[0])
	}
	if bf.Common.Size != 1 {
		t.Fatalf("expected bit_ceil(8)/8 == 1 byte, got %d", bf.Common.Size)
	}
	if len(bf.Fields) != 2 {
		t.Fatalf("expected 2 bitfield entries, got %d", len(bf.Fields))
	}
}

func TestBigEndianByteOrder(t *testing.T) {
	data := []byte{0x12, 0x34}
	res, err := evalSource(t, data, `be u16 value @ 0x0;`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	u, ok := res.Patterns[0].(*pattern.Unsigned)
	if !ok {
		t.Fatalf("expected *pattern.Unsigned, got %T", res.Patterns[0])
	}
	if u.Common.Endian != pattern.BigEndian {
		t.Fatalf("expected big endian tag on pattern")
	}
}

func TestOutOfBoundsRead(t *testing.T) {
	data := []byte{0x01, 0x02}
	res, err := evalSource(t, data, `u32 tooFar @ 0x0;`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.Patterns[0].Common().OutOfBounds {
		t.Fatalf("expected a 4-byte read against a 2-byte source to be flagged out of bounds")
	}
}

func TestTickCancellation(t *testing.T) {
	data := []byte{0x01}
	boom := errors.New("cancelled")
	prog := mustParse(t, `u8 value @ 0x0;`)
	calls := 0
	ev := New(source.NewMemorySource(data), Options{
		Tick: func() error {
			calls++
			return boom
		},
	})
	_, err := ev.Evaluate(prog)
	if !errors.Is(err, boom) {
		t.Fatalf("expected Tick's error to abort evaluation, got %v", err)
	}
	if calls == 0 {
		t.Fatalf("expected Tick to have been called")
	}
}

func TestSiblingArraySize(t *testing.T) {
	data := []byte{0x03, 0xAA, 0xBB, 0xCC}
	src := `
struct Blob {
	u8 count;
	u8 data[count];
};
Blob b @ 0x0;
`
	res, err := evalSource(t, data, src)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	s := res.Patterns[0].(*pattern.Struct)
	arr, ok := s.Children[1].(*pattern.Array)
	if !ok {
		t.Fatalf("expected *pattern.Array, got %T", s.Children[1])
	}
	if len(arr.Children) != 3 {
		t.Fatalf("expected array sized from sibling count (3), got %d elements", len(arr.Children))
	}
}

func TestHiddenAttributeSetsVisibility(t *testing.T) {
	data := []byte{0x01}
	res, err := evalSource(t, data, `u8 value @ 0x0 [[hidden]];`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v := res.Patterns[0].Common().Visibility; v != pattern.Hidden {
		t.Fatalf("expected Hidden visibility, got %v", v)
	}
}

func TestCommentAttributeSuffixPosition(t *testing.T) {
	data := []byte{0x01}
	res, err := evalSource(t, data, `u8 value @ 0x0 [[comment("flag byte")]];`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if c := res.Patterns[0].Common().Comment; c != "flag byte" {
		t.Fatalf("expected comment %q, got %q", "flag byte", c)
	}
}

func TestCommentAttributePrefixPosition(t *testing.T) {
	data := make([]byte, 4)
	src := `
struct Header {
	[[comment("tag field")]] u8 tag;
	u8 rest[3];
};
Header h @ 0x0;
`
	res, err := evalSource(t, data, src)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	s := res.Patterns[0].(*pattern.Struct)
	if c := s.Children[0].Common().Comment; c != "tag field" {
		t.Fatalf("expected comment %q, got %q", "tag field", c)
	}
}

func TestColorAttributeSetsColor(t *testing.T) {
	data := []byte{0x01}
	res, err := evalSource(t, data, `u8 value @ 0x0 [[color(0xff0000)]];`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if c := res.Patterns[0].Common().Color; c != 0xff0000 {
		t.Fatalf("expected color 0xff0000, got %#x", c)
	}
}

func TestFormatAttributeCallsFunction(t *testing.T) {
	data := []byte{0x2A}
	src := `
fn describe(u8 v) {
	return "the answer";
}
u8 value @ 0x0 [[format("describe")]];
`
	res, err := evalSource(t, data, src)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if c := res.Patterns[0].Common().Comment; c != "the answer" {
		t.Fatalf("expected format hook comment %q, got %q", "the answer", c)
	}
}

func TestFormatAttributeUndefinedFunction(t *testing.T) {
	data := []byte{0x2A}
	_, err := evalSource(t, data, `u8 value @ 0x0 [[format("missing")]];`)
	if err == nil {
		t.Fatalf("expected an error referencing an undefined format function")
	}
}

func TestStructInstanceEndianInheritedByMembers(t *testing.T) {
	data := []byte{0x12, 0x34}
	src := `
struct H {
	u16 flags;
};
be H h @ 0x0;
`
	ev := New(source.NewMemorySource(data), Options{})
	res, err := ev.Evaluate(mustParse(t, src))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	s := res.Patterns[0].(*pattern.Struct)
	flags, ok := s.Children[0].(*pattern.Unsigned)
	if !ok {
		t.Fatalf("expected *pattern.Unsigned, got %T", s.Children[0])
	}
	if flags.Common.Endian != pattern.BigEndian {
		t.Fatalf("expected member to inherit the enclosing struct instance's be override")
	}
	v, verr := ev.valueFromPattern(flags)
	if verr != nil {
		t.Fatalf("read flags: %v", verr)
	}
	if v.Lo != 0x1234 {
		t.Fatalf("expected big-endian read 0x1234, got %#x", v.Lo)
	}
}

func TestMemberOverrideWinsOverEnclosingEndian(t *testing.T) {
	data := []byte{0x12, 0x34}
	src := `
struct H {
	le u16 flags;
};
be H h @ 0x0;
`
	res, err := evalSource(t, data, src)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	s := res.Patterns[0].(*pattern.Struct)
	flags := s.Children[0].(*pattern.Unsigned)
	if flags.Common.Endian != pattern.LittleEndian {
		t.Fatalf("expected the member's own le override to win over the struct's be")
	}
}

func TestBitfieldEndianReversesByteWindow(t *testing.T) {
	data := []byte{0x12, 0x34}
	src := `
bitfield Pair {
	a : 8;
	b : 8;
};
be Pair p @ 0x0;
`
	res, err := evalSource(t, data, src)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	bf, ok := res.Patterns[0].(*pattern.Bitfield)
	if !ok {
		t.Fatalf("expected *pattern.Bitfield, got %T", res.Patterns[0])
	}
	if bf.Common.Endian != pattern.BigEndian {
		t.Fatalf("expected bitfield to carry the be tag")
	}
	if bf.Fields[0].Value != 0x34 || bf.Fields[1].Value != 0x12 {
		t.Fatalf("expected byte window reversed for be (a=0x34,b=0x12), got a=%#x b=%#x", bf.Fields[0].Value, bf.Fields[1].Value)
	}
}

func TestStringPlusOperator(t *testing.T) {
	data := []byte{}
	src := `
fn concat() {
	return "ab" + "cd";
}
`
	prog := mustParse(t, src)
	ev := New(source.NewMemorySource(data), Options{})
	if _, err := ev.Evaluate(prog); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	fn := ev.funcs["concat"]
	if fn == nil {
		t.Fatalf("expected function concat to be registered")
	}
	result, err := ev.callFunction(fn, nil)
	if err != nil {
		t.Fatalf("callFunction: %v", err)
	}
	if result.Kind != KindString || result.Str != "abcd" {
		t.Fatalf(`expected "abcd", got %#v`, result)
	}
}

func TestStringRepeatOperator(t *testing.T) {
	src := `
fn repeat() {
	return "ab" * 3;
}
`
	prog := mustParse(t, src)
	ev := New(source.NewMemorySource(nil), Options{})
	if _, err := ev.Evaluate(prog); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	fn := ev.funcs["repeat"]
	result, err := ev.callFunction(fn, nil)
	if err != nil {
		t.Fatalf("callFunction: %v", err)
	}
	if result.Kind != KindString || result.Str != "ababab" {
		t.Fatalf(`expected "ababab", got %#v`, result)
	}
}

func TestStringInvalidOperatorErrors(t *testing.T) {
	src := `
fn bad() {
	return "ab" - "cd";
}
`
	prog := mustParse(t, src)
	ev := New(source.NewMemorySource(nil), Options{})
	if _, err := ev.Evaluate(prog); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	fn := ev.funcs["bad"]
	if _, err := ev.callFunction(fn, nil); err == nil {
		t.Fatalf("expected an error for '-' on strings")
	}
}
