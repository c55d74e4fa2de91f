package walk

import (
	"bytes"
	"io"
	"io/fs"
	"path/filepath"
	"time"
)

// Bytes returns an explicit Entry with an in-memory content, e.g. read from stdin.
func Bytes(name string, content []byte) Entry {
	return bytesEntry{
		name: name,
		info: bytesInfo{name: filepath.Base(name), size: int64(len(content)), modTime: time.Now()},
		b:    content,
	}
}

type bytesEntry struct {
	name string
	info bytesInfo
	b    []byte
}

func (e bytesEntry) Path() string {
	return e.name
}

func (e bytesEntry) RelPath() string {
	return filepath.ToSlash(filepath.Base(e.name))
}

func (e bytesEntry) Explicit() bool {
	return true
}

func (e bytesEntry) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(e.b)), nil
}

func (e bytesEntry) Stat() (fs.FileInfo, error) {
	return e.info, nil
}

type bytesInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (i bytesInfo) Name() string       { return i.name }
func (i bytesInfo) Size() int64        { return i.size }
func (i bytesInfo) Mode() fs.FileMode  { return 0o444 }
func (i bytesInfo) ModTime() time.Time { return i.modTime }
func (i bytesInfo) IsDir() bool        { return false }
func (i bytesInfo) Sys() any           { return nil }
