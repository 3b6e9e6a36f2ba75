package runtime

import (
	"path"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/cursivelang/corec/internal/paniccode"
)

// FileHandle and DirIterHandle mirror the opaque 64-bit handles of
// spec.md §6.
type FileHandle uint64
type DirIterHandle uint64

// file is one in-memory file. The filesystem is simulated entirely
// in-process (spec.md §1 explicitly places "the OS filesystem/stdio layer"
// out of scope as an external collaborator; the core only needs the
// canonicalization/ordering/restriction *contract*, not a live disk).
type file struct {
	mu   sync.Mutex
	data []byte
}

// FileSystem is a virtual, optionally-restricted filesystem handle
// (spec.md §4.9 Filesystem).
type FileSystem struct {
	mu        sync.RWMutex
	files     map[string]*file
	dirs      map[string]bool
	restricted bool
	base       string

	nextHandle uint64
	openFiles  map[FileHandle]*openFile
	nextDirIter uint64
	dirIters    map[DirIterHandle][]string
}

type openFile struct {
	f      *file
	append bool
}

// NewFileSystem creates an unrestricted virtual filesystem rooted at "/".
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files:     map[string]*file{},
		dirs:      map[string]bool{"/": true},
		openFiles: map[FileHandle]*openFile{},
		dirIters:  map[DirIterHandle][]string{},
	}
}

// Restricted returns a filesystem handle that rejects any path outside
// base after canonicalization (spec.md §4.9 "restricted(base)").
func (fsys *FileSystem) Restricted(base string) *FileSystem {
	return &FileSystem{
		files:      fsys.files,
		dirs:       fsys.dirs,
		restricted: true,
		base:       canonicalizeLoose(base),
		openFiles:  map[FileHandle]*openFile{},
		dirIters:   map[DirIterHandle][]string{},
	}
}

// IOError wraps a paniccode.IOError discriminant.
type IOError struct{ Kind paniccode.IOError }

func (e *IOError) Error() string { return "runtime.fs: " + e.Kind.String() }

func canonicalizeLoose(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned
}

// Canonicalize validates and normalizes p per spec.md §4.9: forbids `..`,
// rejects embedded NULs and invalid UTF-8, and — for a restricted handle —
// rejects absolute paths and any result escaping base.
func (fsys *FileSystem) Canonicalize(p string) (string, error) {
	if !utf8.ValidString(p) {
		return "", &IOError{Kind: paniccode.InvalidPath}
	}
	if strings.ContainsRune(p, 0) {
		return "", &IOError{Kind: paniccode.InvalidPath}
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", &IOError{Kind: paniccode.InvalidPath}
		}
	}
	if fsys.restricted && strings.HasPrefix(p, "/") {
		return "", &IOError{Kind: paniccode.InvalidPath}
	}
	composed := norm.NFC.String(p)
	full := composed
	if fsys.restricted {
		full = path.Join(fsys.base, composed)
	} else if !strings.HasPrefix(composed, "/") {
		full = "/" + composed
	}
	full = canonicalizeLoose(full)
	if fsys.restricted && !strings.HasPrefix(full, fsys.base) {
		return "", &IOError{Kind: paniccode.InvalidPath}
	}
	return full, nil
}

func (fsys *FileSystem) allocHandle() FileHandle {
	fsys.nextHandle++
	return FileHandle(fsys.nextHandle)
}

// Create makes a new, empty file at p, failing AlreadyExists if present.
func (fsys *FileSystem) Create(p string) (FileHandle, error) {
	full, err := fsys.Canonicalize(p)
	if err != nil {
		return 0, err
	}
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	if _, ok := fsys.files[full]; ok {
		return 0, &IOError{Kind: paniccode.AlreadyExists}
	}
	f := &file{}
	fsys.files[full] = f
	h := fsys.allocHandle()
	fsys.openFiles[h] = &openFile{f: f}
	return h, nil
}

// Open opens an existing file for reading or writing (append selects
// append-mode writes).
func (fsys *FileSystem) Open(p string, appendMode bool) (FileHandle, error) {
	full, err := fsys.Canonicalize(p)
	if err != nil {
		return 0, err
	}
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	f, ok := fsys.files[full]
	if !ok {
		return 0, &IOError{Kind: paniccode.NotFound}
	}
	h := fsys.allocHandle()
	fsys.openFiles[h] = &openFile{f: f, append: appendMode}
	return h, nil
}

func (fsys *FileSystem) handle(h FileHandle) (*openFile, error) {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()
	of, ok := fsys.openFiles[h]
	if !ok {
		return nil, &IOError{Kind: paniccode.IoFailure}
	}
	return of, nil
}

// Read returns the full contents of an open file.
func (fsys *FileSystem) Read(h FileHandle) ([]byte, error) {
	of, err := fsys.handle(h)
	if err != nil {
		return nil, err
	}
	of.f.mu.Lock()
	defer of.f.mu.Unlock()
	out := make([]byte, len(of.f.data))
	copy(out, of.f.data)
	return out, nil
}

// Write overwrites (or appends to, in append mode) an open file's
// contents.
func (fsys *FileSystem) Write(h FileHandle, data []byte) (int, error) {
	of, err := fsys.handle(h)
	if err != nil {
		return 0, err
	}
	of.f.mu.Lock()
	defer of.f.mu.Unlock()
	if of.append {
		of.f.data = append(of.f.data, data...)
	} else {
		of.f.data = append([]byte(nil), data...)
	}
	return len(data), nil
}

// Close releases an open file handle.
func (fsys *FileSystem) Close(h FileHandle) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	if _, ok := fsys.openFiles[h]; !ok {
		return &IOError{Kind: paniccode.IoFailure}
	}
	delete(fsys.openFiles, h)
	return nil
}

// Mkdir creates a directory entry (and its parents) at p.
func (fsys *FileSystem) Mkdir(p string) error {
	full, err := fsys.Canonicalize(p)
	if err != nil {
		return err
	}
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.dirs[full] = true
	return nil
}

// foldKey produces the sort key for case-folded, NFC-canonicalized
// directory ordering (spec.md §4.9 "sorted, case-folded, unicode-
// composition-canonicalized order").
func foldKey(name string) string {
	return strings.ToLower(norm.NFC.String(name))
}

// ReadDir opens a sorted iterator over the direct children of dir (spec.md
// §4.9 dir iteration).
func (fsys *FileSystem) ReadDir(dir string) (DirIterHandle, error) {
	full, err := fsys.Canonicalize(dir)
	if err != nil {
		return 0, err
	}
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	prefix := full
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	seen := map[string]bool{}
	var names []string
	for p := range fsys.files {
		if rest, ok := childOf(p, prefix); ok && !seen[rest] {
			seen[rest] = true
			names = append(names, rest)
		}
	}
	for p := range fsys.dirs {
		if rest, ok := childOf(p, prefix); ok && !seen[rest] {
			seen[rest] = true
			names = append(names, rest)
		}
	}
	sort.Slice(names, func(i, j int) bool { return foldKey(names[i]) < foldKey(names[j]) })
	fsys.nextDirIter++
	h := DirIterHandle(fsys.nextDirIter)
	fsys.dirIters[h] = names
	return h, nil
}

// childOf reports the direct child name of p relative to prefix, if p is
// a descendant of prefix at any depth (collapsing to its first segment).
func childOf(p, prefix string) (string, bool) {
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := p[len(prefix):]
	if rest == "" {
		return "", false
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

// Next advances a directory iterator, returning (name, true) or ("",
// false) once exhausted.
func (fsys *FileSystem) Next(h DirIterHandle) (string, bool) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	names := fsys.dirIters[h]
	if len(names) == 0 {
		delete(fsys.dirIters, h)
		return "", false
	}
	name := names[0]
	fsys.dirIters[h] = names[1:]
	return name, true
}
