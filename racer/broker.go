package racer

import (
	"sync/atomic"

	"github.com/fernwehq/sshrace/logger"
)

const passphrasePromptLabel = "SSH key passphrase"

// CredentialBroker mediates between candidates that need a key passphrase
// and the prompt surface. Concurrent requests collapse into a single
// prompt, and the submitted passphrase is cached on the session so later
// attempts reuse it without prompting again.
type CredentialBroker struct {
	session *Session
	surface PromptSurface
	logger  logger.Logger

	pending atomic.Bool
}

func newCredentialBroker(s *Session, surface PromptSurface) *CredentialBroker {
	return &CredentialBroker{
		session: s,
		surface: surface,
		logger:  s.logger,
	}
}

// RequestPassphrase attaches a passphrase prompt on behalf of c. If a
// prompt is already pending the request is dropped; the pending prompt's
// submission resumes its own candidate. An aborted prompt clears the
// pending latch without resuming, so the candidate stays suspended until
// a later denial prompts again or the session tears it down.
func (b *CredentialBroker) RequestPassphrase(c *Candidate) {
	if !b.pending.CompareAndSwap(false, true) {
		return
	}

	onSubmit := func(text string) {
		b.pending.Store(false)
		b.session.setPassphrase(text)
		c.resume()
	}
	onAbort := func() {
		b.pending.Store(false)
		b.logger.Debug("passphrase prompt aborted", "server", c.server)
	}

	if err := b.surface.AttachPrompt(passphrasePromptLabel, onSubmit, onAbort); err != nil {
		b.pending.Store(false)
		b.logger.Debug("failed to attach passphrase prompt", "error", err)
	}
}
