// Package zip bundles exported results into a single archive.
package zip

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Writer streams saved files into a zip archive written to an io.Writer.
type Writer struct {
	mu    sync.Mutex
	zw    *zip.Writer
	names map[string]struct{}
	now   func() time.Time
}

// NewWriter starts an archive on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w), names: make(map[string]struct{}), now: time.Now}
}

// Save appends one file. PNG data is already compressed so entries are stored.
func (w *Writer) Save(ctx context.Context, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.names[filename]; dup {
		return fmt.Errorf("zip: duplicate entry %q", filename)
	}
	entry, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     filename,
		Method:   zip.Store,
		Modified: w.now(),
	})
	if err != nil {
		return fmt.Errorf("zip: create %s: %w", filename, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("zip: write %s: %w", filename, err)
	}
	w.names[filename] = struct{}{}
	return nil
}

// Len reports how many entries have been written.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.names)
}

// Close writes the central directory.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.zw.Close()
}
