package racer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/fernwehq/sshrace/logger"
)

// Session owns one raced connection establishment: the set of in-flight
// candidates, the shared byte pipeline, and the session-wide passphrase
// cache. Candidate goroutines mutate session state concurrently, so every
// session-level field is either atomic, mutex-protected, or confined to the
// candidate map.
type Session struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	cfg       *Config
	logger    logger.Logger

	candidates *xsync.MapOf[uint32, *Candidate]
	race       *Coordinator
	broker     *CredentialBroker
	taskMgr    *TaskManager

	credMu         sync.Mutex
	passphrase     string
	passphraseSet  bool
	needPassphrase bool

	winnerCh  chan *Candidate
	readySeen atomic.Bool

	failedOnce  sync.Once
	failedCh    chan struct{}
	failMu      sync.Mutex
	lastFailure *Failure

	opened atomic.Bool
	closed atomic.Bool
}

var _ Credentials = (*Session)(nil)

// NewSession creates a session from the given configuration. The
// configuration must carry a transport factory, a byte pipeline, and a
// prompt surface; candidates are not started until Open is called.
func NewSession(ctx context.Context, cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if len(cfg.servers) == 0 {
		return nil, ErrNoServers
	}
	if cfg.factory == nil {
		return nil, ErrNoTransportFactory
	}
	if cfg.decoder == nil || cfg.encoder == nil {
		return nil, ErrNoPipeline
	}
	if cfg.surface == nil {
		return nil, ErrNoPromptSurface
	}

	s := &Session{
		cfg:        cfg,
		logger:     cfg.Logger(),
		candidates: xsync.NewMapOf[uint32, *Candidate](),
		winnerCh:   make(chan *Candidate, 1),
		failedCh:   make(chan struct{}),
	}

	s.ctx, s.ctxCancel = context.WithCancel(ctx)
	s.taskMgr = NewTaskManager(s.ctx, s.logger)
	s.race = newCoordinator(s)
	s.broker = newCredentialBroker(s, cfg.surface)

	return s, nil
}

// Open starts one candidate per configured server address. When wait is
// true it blocks until a candidate reaches the ready state or every
// candidate has been torn down. A session opens at most once.
func (s *Session) Open(wait bool) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if !s.opened.CompareAndSwap(false, true) {
		return ErrSessionOpened
	}

	// Register every candidate before starting any task loop, so an
	// instantly failing candidate never sees an empty set and mistakes
	// itself for the session's last.
	cands := make([]*Candidate, 0, len(s.cfg.Servers()))
	for _, server := range s.cfg.Servers() {
		c := newCandidate(s, server)
		s.candidates.Store(c.id, c)
		cands = append(cands, c)
	}
	for _, c := range cands {
		s.taskMgr.Start("candidate-"+c.server, c.step)
	}

	if wait {
		return s.WaitReady(s.ctx)
	}

	return nil
}

// WaitReady blocks until a candidate reaches the ready state with an active
// bridge, every candidate has been torn down, or ctx is done.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c := <-s.winnerCh:
		s.logger.Debug("session ready", "server", c.server)
		return nil
	case <-s.failedCh:
		if f := s.failure(); f != nil {
			return f
		}
		return ErrAllCandidatesFailed
	}
}

// Winner returns the candidate the race committed to, or nil while the race
// is still open.
func (s *Session) Winner() *Candidate {
	return s.race.Winner()
}

// CandidateCount returns the number of candidates still in flight.
func (s *Session) CandidateCount() int {
	return s.candidates.Size()
}

// Close tears down every candidate and releases session resources. It is
// safe to call more than once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.candidates.Range(func(_ uint32, c *Candidate) bool {
		s.killCandidate(c, nil)
		return true
	})

	s.ctxCancel()
	s.taskMgr.Stop()
	s.taskMgr.Wait()

	return nil
}

// Passphrase returns the cached passphrase, empty when none has been
// submitted yet. Part of the Credentials contract used by transports.
func (s *Session) Passphrase() string {
	s.credMu.Lock()
	defer s.credMu.Unlock()

	return s.passphrase
}

// NotePassphraseNeeded records that an encrypted identity key exists. Part
// of the Credentials contract used by transports; it never triggers a
// prompt by itself.
func (s *Session) NotePassphraseNeeded() {
	s.credMu.Lock()
	defer s.credMu.Unlock()

	if !s.needPassphrase {
		s.needPassphrase = true
		s.logger.Debug("identity key requires a passphrase")
	}
}

func (s *Session) setPassphrase(text string) {
	s.credMu.Lock()
	defer s.credMu.Unlock()

	s.passphrase = text
	s.passphraseSet = true
}

// cachedPassphrase returns the cached passphrase and whether one has ever
// been submitted, distinguishing "no passphrase yet" from an empty one.
func (s *Session) cachedPassphrase() (string, bool) {
	s.credMu.Lock()
	defer s.credMu.Unlock()

	return s.passphrase, s.passphraseSet
}

func (s *Session) passphraseNeeded() bool {
	s.credMu.Lock()
	defer s.credMu.Unlock()

	return s.needPassphrase
}

// status surfaces a user-visible message through the configured handler.
func (s *Session) status(msg string) {
	if msg == "" {
		return
	}
	if s.cfg.statusHandler != nil {
		s.cfg.statusHandler(msg)
		return
	}
	s.logger.Info(msg)
}

// noteReady records the winning candidate's bridge activation. Only the
// first call has any effect.
func (s *Session) noteReady(c *Candidate) {
	s.readySeen.Store(true)
	select {
	case s.winnerCh <- c:
	default:
	}
}

func (s *Session) noteFailure(f *Failure) {
	s.failMu.Lock()
	defer s.failMu.Unlock()

	s.lastFailure = f
}

func (s *Session) failure() *Failure {
	s.failMu.Lock()
	defer s.failMu.Unlock()

	return s.lastFailure
}

// candidateGone runs after a candidate has been removed. Once the set is
// empty with no candidate ever ready, the session reports total failure.
func (s *Session) candidateGone() {
	if s.candidates.Size() == 0 && !s.readySeen.Load() {
		s.failedOnce.Do(func() { close(s.failedCh) })
	}
}
