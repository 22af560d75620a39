package source

import "testing"

func TestMemorySourceReadWrite(t *testing.T) {
	m := NewMemorySource([]byte{0x01, 0x02, 0x03, 0x04})
	buf := make([]byte, 2)
	if err := m.ReadAt(1, buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf[0] != 0x02 || buf[1] != 0x03 {
		t.Fatalf("unexpected bytes: %v", buf)
	}
	if err := m.WriteAt(0, []byte{0xFF}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.ReadAt(0, buf[:1]); err != nil || buf[0] != 0xFF {
		t.Fatalf("write did not take effect: %v %v", buf, err)
	}
}

func TestMemorySourceOutOfBounds(t *testing.T) {
	m := NewMemorySource([]byte{0x01, 0x02})
	buf := make([]byte, 4)
	if err := m.ReadAt(0, buf); err == nil {
		t.Fatal("expected out of bounds error")
	}
}

func TestReadOnlyMemorySourceRejectsWrites(t *testing.T) {
	m := NewReadOnlyMemorySource([]byte{0x01, 0x02})
	if m.Writable() {
		t.Fatal("expected read-only source to report non-writable")
	}
	if err := m.WriteAt(0, []byte{0xFF}); err == nil {
		t.Fatal("expected write to a read-only source to fail")
	}
}

func TestMemorySourceBaseAddress(t *testing.T) {
	m := NewMemorySource([]byte{0x01}).WithBaseAddress(0x1000)
	if m.BaseAddress() != 0x1000 {
		t.Fatalf("expected base address 0x1000, got 0x%x", m.BaseAddress())
	}
}
