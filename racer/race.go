package racer

import "sync"

// Coordinator resolves the connection race. The first candidate that
// authenticates the server claims the win under the coordinator's lock,
// and every sibling is torn down before the winner proceeds, so at most
// one candidate ever reaches the ready state.
type Coordinator struct {
	session *Session

	mu     sync.Mutex
	winner *Candidate
}

func newCoordinator(s *Session) *Coordinator {
	return &Coordinator{session: s}
}

// DeclareWinner records c as the race winner and synchronously kills every
// sibling candidate. It returns false if another candidate already won, in
// which case c has been torn down and must stop stepping.
func (r *Coordinator) DeclareWinner(c *Candidate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.winner != nil {
		return r.winner == c
	}
	r.winner = c

	r.session.candidates.Range(func(_ uint32, sibling *Candidate) bool {
		if sibling == c {
			return true
		}
		if sibling.bridge.Active() {
			panic("sshrace: sibling with an active bridge during race resolution")
		}
		r.session.killCandidate(sibling, nil)
		return true
	})

	return true
}

// Winner returns the race winner, or nil while the race is open.
func (r *Coordinator) Winner() *Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.winner
}
