package fsfacet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
)

// ReadFormat selects how Handle.Read interprets the underlying file.
type ReadFormat string

// Supported read formats (§4.4).
const (
	ReadAll    ReadFormat = "all"
	ReadLine   ReadFormat = "line"
	ReadNumber ReadFormat = "number"
)

// SeekWhence selects the reference point for Handle.Seek.
type SeekWhence string

// Supported seek whences (§4.4).
const (
	SeekSet SeekWhence = "set"
	SeekCur SeekWhence = "cur"
	SeekEnd SeekWhence = "end"
)

// Handle is one open file, guarded by its own lock so operations on a
// closed handle fail cleanly rather than racing the underlying os.File.
type Handle struct {
	mu     sync.Mutex
	file   *os.File
	reader *bufio.Reader
	path   string
	closed bool

	facet *Facet
}

func (h *Handle) withLock(fn func() error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return toolerrors.NewInvalidArgumentError(fmt.Sprintf("handle for %q is closed", h.path), nil)
	}
	return fn()
}

// Read reads from the handle per format: "all" reads the remainder of the
// file, "line" (the default) reads a single line without its trailing
// newline, "number" reads one whitespace-delimited token and parses it as
// a float64.
func (h *Handle) Read(format ReadFormat) (any, error) {
	var result any
	err := h.withLock(func() error {
		if h.reader == nil {
			h.reader = bufio.NewReader(h.file)
		}
		switch format {
		case "", ReadLine:
			line, rerr := h.reader.ReadString('\n')
			if rerr != nil && rerr != io.EOF {
				return toolerrors.NewInternalError("read line failed", rerr)
			}
			if rerr == io.EOF && line == "" {
				result = nil
				return nil
			}
			result = strings.TrimSuffix(line, "\n")
			return nil
		case ReadAll:
			data, rerr := io.ReadAll(h.reader)
			if rerr != nil {
				return toolerrors.NewInternalError("read all failed", rerr)
			}
			result = string(data)
			return nil
		case ReadNumber:
			var tok strings.Builder
			for {
				b, rerr := h.reader.ReadByte()
				if rerr == io.EOF {
					break
				}
				if rerr != nil {
					return toolerrors.NewInternalError("read number failed", rerr)
				}
				if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
					if tok.Len() == 0 {
						continue
					}
					break
				}
				tok.WriteByte(b)
			}
			if tok.Len() == 0 {
				result = nil
				return nil
			}
			f, perr := strconv.ParseFloat(tok.String(), 64)
			if perr != nil {
				return toolerrors.NewInvalidArgumentError(fmt.Sprintf("content at %q is not a number", h.path), perr)
			}
			result = f
			return nil
		default:
			return toolerrors.NewInvalidArgumentError(fmt.Sprintf("unknown read format %q", format), nil)
		}
	})
	return result, err
}

// Write appends values, each converted to its string form and separated
// by nothing (callers compose their own separators, matching the
// underlying language's file:write semantics). Enforces the facet's
// cumulative write cap; a write that would exceed it fails without
// partial write.
func (h *Handle) Write(values ...string) error {
	return h.withLock(func() error {
		joined := strings.Join(values, "")
		n := int64(len(joined))
		if err := h.facet.reserveWrite(n); err != nil {
			return err
		}
		if _, err := h.file.WriteString(joined); err != nil {
			h.facet.releaseWrite(n)
			return toolerrors.NewInternalError("write failed", err)
		}
		h.reader = nil
		return nil
	})
}

// Lines returns every remaining line (without trailing newlines) as a
// slice, consuming the handle's current read position.
func (h *Handle) Lines() ([]string, error) {
	var out []string
	err := h.withLock(func() error {
		if h.reader == nil {
			h.reader = bufio.NewReader(h.file)
		}
		for {
			line, rerr := h.reader.ReadString('\n')
			if line != "" {
				out = append(out, strings.TrimSuffix(line, "\n"))
			}
			if rerr == io.EOF {
				return nil
			}
			if rerr != nil {
				return toolerrors.NewInternalError("read lines failed", rerr)
			}
		}
	})
	return out, err
}

// Seek repositions the handle per whence ("set", "cur", "end"; default
// "set") and offset.
func (h *Handle) Seek(whence SeekWhence, offset int64) error {
	return h.withLock(func() error {
		var w int
		switch whence {
		case "", SeekSet:
			w = io.SeekStart
		case SeekCur:
			w = io.SeekCurrent
		case SeekEnd:
			w = io.SeekEnd
		default:
			return toolerrors.NewInvalidArgumentError(fmt.Sprintf("unknown seek whence %q", whence), nil)
		}
		if _, err := h.file.Seek(offset, w); err != nil {
			return toolerrors.NewInternalError("seek failed", err)
		}
		h.reader = nil
		return nil
	})
}

// Flush commits any buffered writes to the underlying file.
func (h *Handle) Flush() error {
	return h.withLock(func() error {
		if err := h.file.Sync(); err != nil {
			return toolerrors.NewInternalError("flush failed", err)
		}
		return nil
	})
}

// Close releases the handle's slot in the facet's handle budget. Closing
// an already-closed handle is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.facet.releaseHandle()
	return h.file.Close()
}
