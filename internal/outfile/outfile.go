// Package outfile writes the sample report and log files with size-based
// rotation.
package outfile

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"
)

// Options configures a File.
type Options struct {
	// MaxSize in bytes; a write that would exceed it rotates first.
	// 0 disables rotation.
	MaxSize int64
	// MaxFiles is the number of rotated files kept (.1 .. .N).
	MaxFiles int
	// Truncate empties the file on open instead of appending.
	Truncate bool
}

// File implements io.Writer with size-based rotation.
type File struct {
	path    string
	opts    Options
	current *os.File
	written int64
	mu      sync.Mutex
}

// Open opens (or creates) path. With opts.Truncate the previous content is
// discarded, as the report file is at probe startup.
func Open(path string, opts Options) (*File, error) {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 3
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if opts.Truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{path: path, opts: opts, current: f, written: info.Size()}, nil
}

// Write implements io.Writer. A single write is never split across files.
func (w *File) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return 0, fmt.Errorf("%s: writer is closed", w.path)
	}

	if w.opts.MaxSize > 0 && w.written > 0 && w.written+int64(len(p)) > w.opts.MaxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.current.Write(p)
	w.written += int64(n)
	return n, err
}

// WriteSample appends one rendered sample preceded by a timestamp line and
// followed by a blank line.
func (w *File) WriteSample(ts time.Time, rows int, body []byte) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# sample %s rows=%d\n", ts.Format("2006-01-02T15:04:05.000Z07:00"), rows)
	b.Write(body)
	b.WriteString("\n")
	_, err := w.Write(b.Bytes())
	return err
}

// rotate shifts files: .N→delete, .1→.2, current→.1, open fresh.
func (w *File) rotate() error {
	w.current.Close()

	for i := w.opts.MaxFiles; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", w.path, i)
		if i == w.opts.MaxFiles {
			os.Remove(src)
		} else {
			os.Rename(src, fmt.Sprintf("%s.%d", w.path, i+1))
		}
	}
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		w.current = nil
		return err
	}
	w.current = f
	w.written = 0
	return nil
}

// Close closes the underlying file.
func (w *File) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		err := w.current.Close()
		w.current = nil
		return err
	}
	return nil
}

// Path returns the file path of this writer.
func (w *File) Path() string {
	return w.path
}
