package source

import (
	"os"

	"github.com/pkg/errors"
)

// FileSource is a Source backed by an on-disk file, read-only or
// read-write depending on how it is opened.
type FileSource struct {
	f    *os.File
	size uint64
	base uint64
	ro   bool
}

// OpenFile opens path read-write; writable patterns may modify it.
func OpenFile(path string) (*FileSource, error) {
	return openFile(path, os.O_RDWR)
}

// OpenFileReadOnly opens path for reading only.
func OpenFileReadOnly(path string) (*FileSource, error) {
	return openFile(path, os.O_RDONLY)
}

func openFile(path string, flag int) (*FileSource, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "opening data source %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "statting data source %s", path)
	}
	return &FileSource{f: f, size: uint64(info.Size()), ro: flag == os.O_RDONLY}, nil
}

// WithBaseAddress sets the address the first byte of the file is
// considered to live at.
func (fs *FileSource) WithBaseAddress(base uint64) *FileSource {
	fs.base = base
	return fs
}

func (fs *FileSource) Size() uint64        { return fs.size }
func (fs *FileSource) BaseAddress() uint64 { return fs.base }
func (fs *FileSource) Writable() bool      { return !fs.ro }
func (fs *FileSource) Close() error        { return fs.f.Close() }

func (fs *FileSource) ReadAt(offset uint64, buf []byte) error {
	if err := checkBounds(fs, offset, len(buf)); err != nil {
		return err
	}
	_, err := fs.f.ReadAt(buf, int64(offset))
	if err != nil {
		return errors.Wrapf(err, "reading data source at 0x%x", offset)
	}
	return nil
}

func (fs *FileSource) WriteAt(offset uint64, buf []byte) error {
	if fs.ro {
		return OutOfBounds(fs, offset, len(buf))
	}
	if err := checkBounds(fs, offset, len(buf)); err != nil {
		return err
	}
	_, err := fs.f.WriteAt(buf, int64(offset))
	if err != nil {
		return errors.Wrapf(err, "writing data source at 0x%x", offset)
	}
	return nil
}
