package fsfacet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
)

// DefaultMaxHandles is the per-execution open-handle ceiling (§4.4).
const DefaultMaxHandles = 64

// DefaultMaxWriteBytes is the default cumulative write cap in bytes
// (§4.4): 52,428,800 bytes (50 MiB).
const DefaultMaxWriteBytes int64 = 52_428_800

// TouchedOp tags the final-state operation recorded for a touched path.
type TouchedOp string

// Operations the final-state digest can report (§4.4).
const (
	OpWrite  TouchedOp = "write"
	OpRemove TouchedOp = "remove"
)

// TouchedFile is one entry in the final-state digest.
type TouchedFile struct {
	Name  string
	Op    TouchedOp
	Bytes int64
}

// Config configures one Facet instance.
type Config struct {
	Root          string
	MaxHandles    int
	MaxWriteBytes int64
}

// Facet is the per-execution filesystem facet state (§3): the sandbox
// root, a cumulative written-bytes counter, an open-handle counter, and a
// record of every name opened for write/append or removed, used to build
// the final-state digest at execution end.
type Facet struct {
	root          string
	maxHandles    int
	maxWriteBytes int64

	mu           sync.Mutex
	openHandles  int
	writtenBytes int64
	touchedNames map[string]struct{}
}

// New constructs a Facet rooted at cfg.Root. Zero-valued limits fall back
// to the package defaults.
func New(cfg Config) *Facet {
	maxHandles := cfg.MaxHandles
	if maxHandles <= 0 {
		maxHandles = DefaultMaxHandles
	}
	maxWriteBytes := cfg.MaxWriteBytes
	if maxWriteBytes <= 0 {
		maxWriteBytes = DefaultMaxWriteBytes
	}
	return &Facet{
		root:          filepath.Clean(cfg.Root),
		maxHandles:    maxHandles,
		maxWriteBytes: maxWriteBytes,
		touchedNames:  make(map[string]struct{}),
	}
}

func (f *Facet) reserveWrite(n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writtenBytes+n > f.maxWriteBytes {
		return toolerrors.NewResourceExhaustedError(
			fmt.Sprintf("write would exceed cumulative write cap of %d bytes", f.maxWriteBytes), nil)
	}
	f.writtenBytes += n
	return nil
}

func (f *Facet) releaseWrite(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writtenBytes -= n
}

func (f *Facet) reserveHandle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openHandles >= f.maxHandles {
		return toolerrors.NewResourceExhaustedError(
			fmt.Sprintf("at most %d file handles may be open at once", f.maxHandles), nil)
	}
	f.openHandles++
	return nil
}

func (f *Facet) releaseHandle() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openHandles--
}

func (f *Facet) markTouched(cleanPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchedNames[cleanPath] = struct{}{}
}

// Open opens path under the sandbox root. mode follows the teacher's
// notion of an io.open mode string: "r" (default) for read, "w" for
// truncate-write, "a" for append. Parent directories are auto-created for
// write/append modes.
func (f *Facet) Open(path, mode string) (*Handle, error) {
	full, err := resolvePath(f.root, path)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = "r"
	}

	if err := f.reserveHandle(); err != nil {
		return nil, err
	}

	var file *os.File
	switch mode {
	case "r":
		file, err = os.Open(full)
	case "w":
		if mkErr := os.MkdirAll(filepath.Dir(full), 0o755); mkErr != nil {
			f.releaseHandle()
			return nil, toolerrors.NewInternalError("create parent directories failed", mkErr)
		}
		file, err = os.Create(full)
		f.markTouched(path)
	case "a":
		if mkErr := os.MkdirAll(filepath.Dir(full), 0o755); mkErr != nil {
			f.releaseHandle()
			return nil, toolerrors.NewInternalError("create parent directories failed", mkErr)
		}
		file, err = os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		f.markTouched(path)
	default:
		f.releaseHandle()
		return nil, toolerrors.NewInvalidArgumentError(fmt.Sprintf("unknown open mode %q", mode), nil)
	}
	if err != nil {
		f.releaseHandle()
		return nil, toolerrors.NewNotFoundError(fmt.Sprintf("open %q failed", path), err)
	}

	return &Handle{file: file, path: path, facet: f}, nil
}

// Lines opens path read-only and returns every line, without trailing
// newlines.
func (f *Facet) Lines(path string) ([]string, error) {
	h, err := f.Open(path, "r")
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.Lines()
}

// List returns the entries of the directory at path (root if path is
// empty), sorted by name.
func (f *Facet) List(path string) ([]string, error) {
	full := f.root
	if path != "" {
		var err error
		full, err = resolvePath(f.root, path)
		if err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, toolerrors.NewNotFoundError(fmt.Sprintf("list %q failed", path), err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes the file or empty directory at path and marks it touched
// so the final-state digest reports its removal.
func (f *Facet) Remove(path string) error {
	full, err := resolvePath(f.root, path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return toolerrors.NewNotFoundError(fmt.Sprintf("remove %q failed", path), err)
	}
	f.markTouched(path)
	return nil
}

// Digest re-examines the disk for every name touched by write/append/
// remove during the execution and reports its final state (§4.4).
// Intermediate operations are not separately surfaced.
func (f *Facet) Digest() []TouchedFile {
	f.mu.Lock()
	names := make([]string, 0, len(f.touchedNames))
	for name := range f.touchedNames {
		names = append(names, name)
	}
	f.mu.Unlock()
	sort.Strings(names)

	out := make([]TouchedFile, 0, len(names))
	for _, name := range names {
		full, err := resolvePath(f.root, name)
		if err != nil {
			continue
		}
		info, err := os.Stat(full)
		if err != nil {
			out = append(out, TouchedFile{Name: name, Op: OpRemove, Bytes: 0})
			continue
		}
		out = append(out, TouchedFile{Name: name, Op: OpWrite, Bytes: info.Size()})
	}
	return out
}
