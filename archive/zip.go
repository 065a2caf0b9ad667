// Package archive writes a run's entries into a single zip container.
//
// A Zip is either file backed, in which case entries go to a temporary file
// next to the destination that is renamed into place on Finalize, or buffer
// backed for callers that hand the bytes on themselves. A discarded archive
// leaves nothing behind.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

var (
	ErrClosed    = errors.New("archive already finalized or discarded")
	ErrNotClosed = errors.New("archive not finalized")
)

// Zip is safe for use by one writer at a time; calls are serialized so a
// stray concurrent Create cannot corrupt the stream.
type Zip struct {
	mu       sync.Mutex
	zw       *zip.Writer
	file     *os.File
	dest     string
	buf      *bytes.Buffer
	modTime  time.Time
	entries  int
	closed   bool
	finished bool
}

// Option configures a Zip.
type Option func(*Zip)

// WithModTime stamps every entry with t, which makes archives of the same
// collection byte-identical.
func WithModTime(t time.Time) Option {
	return func(z *Zip) { z.modTime = t }
}

// Create starts a file-backed archive that appears at dest on Finalize.
func Create(dest string, opts ...Option) (*Zip, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	z := newZip(f, opts)
	z.file = f
	z.dest = dest
	return z, nil
}

// NewBuffer starts an in-memory archive; Bytes is valid after Finalize.
func NewBuffer(opts ...Option) *Zip {
	buf := new(bytes.Buffer)
	z := newZip(buf, opts)
	z.buf = buf
	return z
}

func newZip(w io.Writer, opts []Option) *Zip {
	z := &Zip{zw: zip.NewWriter(w), modTime: time.Now()}
	z.zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Create adds one entry. Already-compressed image data is stored as is.
func (z *Zip) Create(name string, data []byte) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.closed {
		return ErrClosed
	}
	method := zip.Deflate
	if isCompressedImage(name) {
		method = zip.Store
	}
	w, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: z.modTime,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	z.entries++
	return nil
}

// Finalize writes the central directory and, for file-backed archives,
// moves the file to its destination. It may succeed only once.
func (z *Zip) Finalize() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.closed {
		return ErrClosed
	}
	z.closed = true
	if err := z.zw.Close(); err != nil {
		z.removeTemp()
		return fmt.Errorf("close zip: %w", err)
	}
	if z.file != nil {
		if err := z.file.Close(); err != nil {
			z.removeTemp()
			return fmt.Errorf("close archive file: %w", err)
		}
		if err := os.Rename(z.file.Name(), z.dest); err != nil {
			z.removeTemp()
			return fmt.Errorf("move archive into place: %w", err)
		}
	}
	z.finished = true
	return nil
}

// Discard drops everything written so far. Discarding a finalized archive
// is a no-op.
func (z *Zip) Discard() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.closed {
		return nil
	}
	z.closed = true
	if z.buf != nil {
		z.buf.Reset()
		return nil
	}
	_ = z.file.Close()
	return z.removeTemp()
}

func (z *Zip) removeTemp() error {
	if z.file == nil {
		return nil
	}
	if err := os.Remove(z.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Bytes returns the finished buffer-backed archive.
func (z *Zip) Bytes() ([]byte, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if !z.finished {
		return nil, ErrNotClosed
	}
	if z.buf == nil {
		return os.ReadFile(z.dest)
	}
	return z.buf.Bytes(), nil
}

// Path is the destination of a file-backed archive.
func (z *Zip) Path() string { return z.dest }

// Entries counts entries written so far.
func (z *Zip) Entries() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.entries
}

func isCompressedImage(name string) bool {
	switch filepath.Ext(name) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}
