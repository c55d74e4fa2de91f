package walk

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
)

// Entry is a handle of a single regular file to be analyzed.
type Entry interface {
	// Path is used for reporting, it is prefixed by the name of a walked root
	Path() string
	// RelPath is a slash separated path relative to the walked root
	RelPath() string
	// Explicit is true for files named directly by a caller
	Explicit() bool
	Open() (io.ReadCloser, error)
	Stat() (fs.FileInfo, error)
}

// SkipDirs are never descended into.
var SkipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".idea":        true,
}

// Paths yields entries for every path. Regular files are yielded as explicit
// entries, directories are walked recursively via os.Root. A path which
// can't be inspected yields an error. Entries stay usable after the iteration
// ends.
func Paths(ctx context.Context, paths ...string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, path := range paths {
			if ctx.Err() != nil {
				return
			}
			info, err := os.Stat(path)
			if err != nil {
				if !yield(fileEntry{path: path, infoErr: err}, err) {
					return
				}
				continue
			}
			if !info.IsDir() {
				if !yield(fileEntry{path: path, info: info}, nil) {
					return
				}
				continue
			}

			root, err := os.OpenRoot(path)
			if err != nil {
				if !yield(fileEntry{path: path, infoErr: err}, err) {
					return
				}
				continue
			}
			stop := false
			for entry, err := range Roots(ctx, root) {
				// root is closed once the walk ends, entries are opened later
				if e, ok := entry.(fsEntry); ok {
					entry = dirEntry{fsEntry: e, dir: path}
				}
				if !yield(entry, err) {
					stop = true
					break
				}
			}
			_ = root.Close()
			if stop {
				return
			}
		}
	}
}

// Roots is a convenience wrapper around FS for os.Root. See FS for details.
// Entries can be opened only while the roots are open.
func Roots(ctx context.Context, roots ...*os.Root) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, root := range roots {
			for entry, err := range FS(ctx, root.FS(), root.Name()) {
				if !yield(entry, err) {
					return
				}
			}
		}
	}
}

// FS recursively walks the filesystem rooted at root and return a handle for every regular file found.
// Or an error if file information retrieval fails.
// Each Entry's Path() is prefixed with name of a filesystem. It does not follow symlinks
// and skips directories listed in SkipDirs.
func FS(ctx context.Context, root fs.FS, name string) iter.Seq2[Entry, error] {
	if root == nil {
		panic("root is nil")
	}

	return func(yield func(Entry, error) bool) {
		fn := func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			if err == nil && d.IsDir() {
				if path != "." && SkipDirs[d.Name()] {
					return fs.SkipDir
				}
				return nil
			}
			var entry = fsEntry{
				root:    root,
				abspath: filepath.Join(name, filepath.FromSlash(path)),
				path:    path,
			}
			var yieldErr error
			if err != nil {
				entry.infoErr = err
				yieldErr = err
			} else {
				info, err := d.Info()
				if err != nil {
					entry.infoErr = err
					yieldErr = err
				} else {
					if !info.Mode().IsRegular() {
						return nil
					}
					entry.info = info
				}
			}

			if !yield(entry, yieldErr) {
				return fs.SkipAll
			}
			return nil
		}
		_ = fs.WalkDir(root, ".", fn)
	}
}

// fsEntry implements Entry for a filesystem
// it uses root.Open to open the file
type fsEntry struct {
	root    fs.FS
	abspath string
	path    string
	info    fs.FileInfo
	infoErr error
}

// returns the path to the file prefixed by a root name
func (e fsEntry) Path() string {
	return e.abspath
}

func (e fsEntry) RelPath() string {
	return e.path
}

func (e fsEntry) Explicit() bool {
	return false
}

func (e fsEntry) Open() (io.ReadCloser, error) {
	if e.infoErr != nil {
		return nil, e.infoErr
	}
	return e.root.Open(e.path)
}

func (e fsEntry) Stat() (fs.FileInfo, error) {
	return e.info, e.infoErr
}

// fileEntry is a file named by a caller
type fileEntry struct {
	path    string
	info    fs.FileInfo
	infoErr error
}

func (e fileEntry) Path() string {
	return e.path
}

func (e fileEntry) RelPath() string {
	return filepath.ToSlash(filepath.Base(e.path))
}

func (e fileEntry) Explicit() bool {
	return true
}

func (e fileEntry) Open() (io.ReadCloser, error) {
	if e.infoErr != nil {
		return nil, e.infoErr
	}
	return os.Open(e.path)
}

func (e fileEntry) Stat() (fs.FileInfo, error) {
	return e.info, e.infoErr
}

// dirEntry opens a walked file through its directory, not through a root
// which might be already closed
type dirEntry struct {
	fsEntry
	dir string
}

func (e dirEntry) Open() (io.ReadCloser, error) {
	if e.infoErr != nil {
		return nil, e.infoErr
	}
	return os.OpenInRoot(e.dir, filepath.FromSlash(e.path))
}
