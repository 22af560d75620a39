// Package source implements the Data Source contract (C1): a byte
// window the evaluator reads patterns from and, for writable sources,
// writes them back to. The contract makes no assumption about the
// backing store — a file, an in-memory buffer, a SQL BLOB column, or a
// remote process reachable over a small websocket protocol can all
// satisfy it.
package source

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"patternlang/internal/diag"
)

// Source is the byte window the evaluator reads from.
type Source interface {
	// Size reports the total addressable length in bytes.
	Size() uint64
	// BaseAddress is added to every pattern offset when the backing
	// store does not start at file/process offset zero (e.g. a loaded
	// firmware image mapped at a fixed base).
	BaseAddress() uint64
	// ReadAt fills buf with len(buf) bytes starting at offset,
	// returning a diag.Diagnostic(KindRuntime, SubOutOfBounds) if the
	// read would run past Size().
	ReadAt(offset uint64, buf []byte) error
	// Writable reports whether WriteAt may succeed.
	Writable() bool
	// WriteAt writes buf at offset; returns an error on a read-only
	// source or an out-of-bounds write.
	WriteAt(offset uint64, buf []byte) error
	// Close releases any underlying resource (file handle, DB
	// connection, socket).
	Close() error
}

// OutOfBounds builds the standard diagnostic for a read/write that
// would run past the end of src.
func OutOfBounds(src Source, offset uint64, length int) error {
	return diag.NewSub(diag.KindRuntime, diag.SubOutOfBounds,
		fmt.Sprintf("offset 0x%x (%s) is past end of %s source",
			offset, humanize.Bytes(uint64(length)), humanize.Bytes(src.Size())),
		diag.Location{})
}

func checkBounds(src Source, offset uint64, length int) error {
	if length < 0 {
		return diag.New(diag.KindInternal, "negative read length", diag.Location{})
	}
	if offset > src.Size() || uint64(length) > src.Size()-offset {
		return OutOfBounds(src, offset, length)
	}
	return nil
}
