package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hyperjump/seek/internal/models"
	"github.com/hyperjump/seek/internal/session"
)

// ErrNoAnswer is returned by AskConfirmation when input ends before an answer.
var ErrNoAnswer = errors.New("no answer")

// AskConfirmation asks whether to search with the short terms. Only "y" or "yes" proceeds.
func AskConfirmation(in io.Reader, out io.Writer, short []string, minLength int) (bool, error) {
	quoted := make([]string, 0, len(short))
	for _, t := range short {
		quoted = append(quoted, fmt.Sprintf("%q", t))
	}
	fmt.Fprintf(out, "Terms shorter than %d characters may match a lot of files: %s\nSearch anyway? [y/N] ",
		minLength, strings.Join(quoted, ", "))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return false, err
		}
		if strings.TrimSpace(line) == "" {
			return false, ErrNoAnswer
		}
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// TerminalObserver shows session progress on a terminal and signals when results are ready.
type TerminalObserver struct {
	session.NopObserver

	w     io.Writer
	quiet bool

	mu         sync.Mutex
	showing    bool
	err        error
	finished   chan struct{}
	finishOnce sync.Once
}

// NewTerminalObserver writes progress to w unless quiet is set. Failures are always written.
func NewTerminalObserver(w io.Writer, quiet bool) *TerminalObserver {
	return &TerminalObserver{w: w, quiet: quiet, finished: make(chan struct{})}
}

// Finished is closed when the search produced results, ended empty or failed.
func (o *TerminalObserver) Finished() <-chan struct{} {
	return o.finished
}

// Err returns the last failure reported by the session.
func (o *TerminalObserver) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *TerminalObserver) SearchStarted(q models.Query, directory string) {
	if o.quiet {
		return
	}
	fmt.Fprintf(o.w, "Searching %s for %s\n", directory, q.String())
}

func (o *TerminalObserver) Progress(total int) {
	if o.quiet {
		return
	}
	o.mu.Lock()
	o.showing = true
	o.mu.Unlock()
	fmt.Fprintf(o.w, "\rFound %d items", total)
}

func (o *TerminalObserver) DismissProgress() error {
	o.mu.Lock()
	showing := o.showing
	o.showing = false
	o.mu.Unlock()
	if !showing {
		return nil
	}
	_, err := fmt.Fprintln(o.w)
	return err
}

func (o *TerminalObserver) EmptyResults() {
	// A failed search also ends empty; the failure was already printed.
	if !o.quiet && o.Err() == nil {
		fmt.Fprintln(o.w, "No results")
	}
	o.finish()
}

func (o *TerminalObserver) ResultsRendered([]*models.SearchResult) {
	o.finish()
}

func (o *TerminalObserver) Notify(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
	fmt.Fprintf(o.w, "Search failed: %v\n", err)
	o.finish()
}

func (o *TerminalObserver) finish() {
	o.finishOnce.Do(func() { close(o.finished) })
}
