// Package capture copies an input stream into a session, line by line.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/tull/internal/store"
)

// Options configures a capture run.
type Options struct {
	// Store receives the session. Required.
	Store *store.Store
	// ID names an existing or new session to append to. Empty means a fresh id.
	ID string
	// In is the stream being captured.
	In io.Reader
	// Out receives every captured line.
	Out io.Writer
	// Warn receives non-fatal problems. Defaults to io.Discard.
	Warn io.Writer
}

// Result describes a finished capture.
type Result struct {
	ID        string
	Lines     int  // lines appended to the session
	Failed    int  // lines that could not be written
	Discarded bool // the session was empty and removed
}

// Run reads In until end of stream, echoing each line to Out and appending
// it to the session. Write failures are reported to Warn and capture carries
// on. When nothing was appended the empty session file is removed.
//
// Run returns early with ctx.Err() only between lines; a blocked read is not
// interrupted.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Store == nil {
		return Result{}, errors.New("capture: store is required")
	}
	if opts.In == nil {
		return Result{}, errors.New("capture: input is required")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	warn := opts.Warn
	if warn == nil {
		warn = io.Discard
	}

	id := opts.ID
	if id == "" {
		id = opts.Store.NewID()
	}

	w, err := opts.Store.OpenForAppend(id)
	if err != nil {
		return Result{ID: id}, err
	}

	result := Result{ID: id}
	reader := bufio.NewReader(opts.In)

	var loopErr error
	for {
		if err := ctx.Err(); err != nil {
			loopErr = err
			break
		}

		line, readErr := reader.ReadString('\n')
		if line != "" {
			text := trimNewline(line)
			fmt.Fprintln(out, text)
			if err := w.AppendLine(text); err != nil {
				result.Failed++
				fmt.Fprintln(warn, "Couldn't write to session file.")
			}
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				loopErr = fmt.Errorf("read input: %w", readErr)
			}
			break
		}
	}

	result.Lines = w.Lines()
	if err := w.Close(); err != nil {
		fmt.Fprintf(warn, "Couldn't close the session file: %v\n", err)
	}

	if result.Lines == 0 {
		removed, err := opts.Store.DiscardIfEmpty(id)
		if err != nil {
			fmt.Fprintln(warn, "Couldn't remove the session file.")
		}
		result.Discarded = removed
	}

	return result, loopErr
}

func trimNewline(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
