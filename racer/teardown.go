package racer

// killCandidate permanently removes a candidate. The failure, when
// non-nil, feeds the session's message policy.
func (s *Session) killCandidate(c *Candidate, f *Failure) {
	s.teardownCandidate(c, f)
}

// reconnectCandidate tears a candidate down after a transient failure.
//
// TODO: arm c.reconnectTimer here and recreate the transport from the
// initial state when it fires, instead of leaving the candidate dead.
func (s *Session) reconnectCandidate(c *Candidate, f *Failure) {
	s.teardownCandidate(c, f)
}

func (s *Session) teardownCandidate(c *Candidate, f *Failure) {
	if !c.released.CompareAndSwap(false, true) {
		return
	}

	if f != nil {
		s.noteFailure(f)
	}

	s.candidates.Delete(c.id)
	c.cancel()

	// Detach the transport under its lock: the candidate goroutine may be
	// installing it concurrently, and a torn-down candidate must hold no
	// transport.
	if t := c.takeTransport(); t != nil {
		if err := t.Close(); err != nil {
			c.logger.Debug("failed to close transport", "error", err)
		}
	}

	c.setState(StateNone)

	// A failure surfaces to the user only when this candidate was the
	// last one standing; otherwise a sibling may still win and the
	// message would just be noise.
	if f != nil {
		if msg := f.UserMessage(); msg != "" && s.candidates.Size() == 0 {
			s.status(msg)
		} else if msg != "" {
			c.logger.Debug("candidate failed", "op", f.Op, "message", msg, "error", f.Err)
		}
	}

	s.candidateGone()
}
