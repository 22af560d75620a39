package source

// MemorySource is a Source backed by an in-memory buffer, used for
// tests and for patterns evaluated against already-loaded bytes.
type MemorySource struct {
	data []byte
	base uint64
	ro   bool
}

// NewMemorySource wraps data as a writable in-memory Source.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

// NewReadOnlyMemorySource wraps data as a read-only in-memory Source.
func NewReadOnlyMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data, ro: true}
}

// WithBaseAddress sets the address the first byte of data is
// considered to live at.
func (m *MemorySource) WithBaseAddress(base uint64) *MemorySource {
	m.base = base
	return m
}

func (m *MemorySource) Size() uint64        { return uint64(len(m.data)) }
func (m *MemorySource) BaseAddress() uint64 { return m.base }
func (m *MemorySource) Writable() bool      { return !m.ro }
func (m *MemorySource) Close() error        { return nil }

func (m *MemorySource) ReadAt(offset uint64, buf []byte) error {
	if err := checkBounds(m, offset, len(buf)); err != nil {
		return err
	}
	copy(buf, m.data[offset:offset+uint64(len(buf))])
	return nil
}

func (m *MemorySource) WriteAt(offset uint64, buf []byte) error {
	if m.ro {
		return OutOfBounds(m, offset, len(buf))
	}
	if err := checkBounds(m, offset, len(buf)); err != nil {
		return err
	}
	copy(m.data[offset:offset+uint64(len(buf))], buf)
	return nil
}
