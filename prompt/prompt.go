// Package prompt provides the interactive terminal surface used to
// collect an SSH key passphrase. At most one prompt is active at a time;
// a second attach while one is pending returns ErrPromptActive.
package prompt

import (
	"errors"
	"sync/atomic"

	"github.com/chzyer/readline"

	"github.com/fernwehq/sshrace/logger"
)

// ErrPromptActive indicates a prompt is already waiting for input.
var ErrPromptActive = errors.New("prompt: a prompt is already active")

// Terminal reads hidden input from the controlling terminal.
type Terminal struct {
	logger logger.Logger
	active atomic.Bool
}

// NewTerminal creates a terminal prompt surface. A nil logger falls back
// to the package default.
func NewTerminal(l logger.Logger) *Terminal {
	if l == nil {
		l = logger.GetLogger()
	}
	return &Terminal{logger: l}
}

// AttachPrompt displays label and reads one line without echo. Exactly
// one of the callbacks runs: onSubmit when the user confirms, onAbort
// when the read is interrupted (ctrl-c) or fails.
func (t *Terminal) AttachPrompt(label string, onSubmit func(text string), onAbort func()) error {
	if !t.active.CompareAndSwap(false, true) {
		return ErrPromptActive
	}

	go func() {
		defer t.active.Store(false)

		line, err := readline.Password(label + ": ")
		if err != nil {
			t.logger.Debug("prompt aborted", "label", label, "error", err)
			if onAbort != nil {
				onAbort()
			}
			return
		}
		onSubmit(string(line))
	}()

	return nil
}
