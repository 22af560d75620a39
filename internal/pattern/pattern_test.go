package pattern

import "testing"

func TestBitfieldByteSize(t *testing.T) {
	cases := []struct {
		bits int
		want uint64
	}{
		{4, 1}, {8, 1}, {9, 2}, {16, 2}, {20, 4}, {32, 4}, {40, 8},
	}
	for _, c := range cases {
		if got := BitfieldByteSize(c.bits); got != c.want {
			t.Fatalf("BitfieldByteSize(%d) = %d, want %d", c.bits, got, c.want)
		}
	}
}

func TestFormatterRendersStructAndArray(t *testing.T) {
	child := &Unsigned{Common: Common{Name: "magic", Offset: 0, Size: 4}, Width: 4}
	s := &Struct{Common: Common{Name: "hdr", TypeName: "Header", Offset: 0, Size: 4}, Children: []Node{child}}
	elem := &Unsigned{Common: Common{Name: "[0]", Offset: 4, Size: 1}, Width: 1}
	arr := &Array{Common: Common{Name: "data", TypeName: "u8", Offset: 4, Size: 1}, ElementType: "u8", Stride: 1, Children: []Node{elem}}
	out := NewFormatter().Format([]Node{s, arr})
	if out == "" {
		t.Fatal("expected non-empty output")
	}
}

func TestFormatterSkipsHidden(t *testing.T) {
	n := &Padding{Common: Common{Name: "pad", Visibility: Hidden, Size: 1}}
	out := NewFormatter().Format([]Node{n})
	if out != "" {
		t.Fatalf("expected hidden pattern to produce no output, got %q", out)
	}
}
