package store

import (
	"fmt"
	"os"
	"sync"
)

// Writer appends lines to one session file.
type Writer struct {
	id   string
	file *os.File

	mu    sync.Mutex
	lines int
}

// ID returns the session id being written.
func (w *Writer) ID() string {
	return w.id
}

// AppendLine writes text and a newline in a single write, so a reader sees
// either the whole line or none of it once the call returns.
func (w *Writer) AppendLine(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := make([]byte, 0, len(text)+1)
	buf = append(buf, text...)
	buf = append(buf, '\n')

	if _, err := w.file.Write(buf); err != nil {
		return fmt.Errorf("append to session %s: %w", w.id, err)
	}
	w.lines++
	return nil
}

// Lines returns the number of lines appended through this writer.
func (w *Writer) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.file.Close()
}
