package racer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fernwehq/sshrace/logger"
)

var candidateIDGen atomic.Uint32

func nextCandidateID() uint32 {
	return candidateIDGen.Add(1)
}

// Candidate represents one in-flight or completed connection attempt. Its
// state machine is driven by a session task loop: each step call performs
// one transition, and a step that completes without suspending simply lets
// the loop re-invoke it with the new state, so fallthrough chains collapse
// into consecutive loop passes.
type Candidate struct {
	id      uint32
	session *Session
	server  string
	logger  logger.Logger

	// transport is set while stepping through StateInit and nilled again
	// by teardown, which may run on another goroutine; transportMu covers
	// both. Teardown releases the channel and the protocol session
	// together through a single Close.
	transportMu  sync.Mutex
	transport    Transport
	identityPath string

	bridge *IOBridge

	state atomic.Uint32

	// triedSet records whether any submitted passphrase backed the most
	// recent auth try, which is what gates the typo hint.
	triedSet bool

	resumeCh chan struct{}

	// released latches teardown so removal and transport release happen
	// exactly once.
	released atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	// reconnectTimer is reserved for re-arming a torn-down candidate from
	// StateInit; teardown never schedules it today (see teardown.go).
	reconnectTimer *time.Timer
}

func newCandidate(s *Session, server string) *Candidate {
	c := &Candidate{
		id:       nextCandidateID(),
		session:  s,
		server:   server,
		logger:   s.logger.With("server", server),
		resumeCh: make(chan struct{}, 1),
	}
	c.ctx, c.cancel = context.WithCancel(s.ctx)
	c.bridge = newIOBridge(c)
	c.state.Store(uint32(StateInit))

	return c
}

// State returns the candidate's current handshake state.
func (c *Candidate) State() State {
	return State(c.state.Load())
}

// Server returns the candidate's server address.
func (c *Candidate) Server() string {
	return c.server
}

// Bridge returns the candidate's IO bridge.
func (c *Candidate) Bridge() *IOBridge {
	return c.bridge
}

func (c *Candidate) setTransport(t Transport) {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	c.transport = t
}

// getTransport returns the candidate's transport, nil once teardown has
// taken it.
func (c *Candidate) getTransport() Transport {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	return c.transport
}

// takeTransport detaches the transport from the candidate, so exactly one
// caller ends up closing it.
func (c *Candidate) takeTransport() Transport {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	t := c.transport
	c.transport = nil
	return t
}

func (c *Candidate) setState(next State) {
	prev := State(c.state.Swap(uint32(next)))
	if prev != next {
		c.logger.Debug("candidate state changed", "prevState", prev, "curState", next)
	}
}

// step advances the state machine by one transition. It returns false to
// stop the driving task loop, either because the candidate suspended on a
// terminal condition or because it was torn down.
func (c *Candidate) step() bool {
	if c.released.Load() || c.ctx.Err() != nil {
		return false
	}

	switch c.State() {
	case StateInit:
		return c.stepInit()
	case StateConnect:
		return c.stepConnect()
	case StateAuthServer:
		return c.stepAuthServer()
	case StateAuthClient:
		return c.stepAuthClient()
	case StateOpenChannel:
		return c.stepOpenChannel()
	case StateBootstrap:
		return c.stepBootstrap()
	case StateReady:
		return c.stepReady()
	default: // StateNone: torn down
		return false
	}
}

// fail routes a failure to its teardown path and stops the task loop.
func (c *Candidate) fail(f *Failure) bool {
	switch f.Kind {
	case FailureKill:
		c.session.killCandidate(c, f)
	case FailureFatal:
		c.logger.Error("local resource failure", "op", f.Op, "error", f.Err)
		c.session.killCandidate(c, f)
	default:
		c.session.reconnectCandidate(c, f)
	}

	return false
}

// halted reports whether err stems from the candidate being torn down
// rather than from the remote end.
func (c *Candidate) halted(err error) bool {
	return c.released.Load() || c.ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func (c *Candidate) stepInit() bool {
	identityPath, err := ResolveIdentity(c.session.cfg.Identity())
	if err != nil {
		return c.fail(newFailure(FailureFatal, "init", c.server, "", err))
	}
	c.identityPath = identityPath

	transport, err := c.session.cfg.factory(c.server, identityPath)
	if err != nil {
		return c.fail(newFailure(FailureFatal, "init", c.server, "", err))
	}
	if transport == nil {
		return c.fail(newFailure(FailureFatal, "init", c.server, "", errors.New("transport factory returned nil")))
	}
	c.setTransport(transport)

	// Teardown may have raced the factory call and seen a nil transport;
	// take it back so this one still gets released exactly once.
	if c.released.Load() {
		if t := c.takeTransport(); t != nil {
			_ = t.Close()
		}
		return false
	}

	c.setState(StateConnect)

	return true
}

func (c *Candidate) stepConnect() bool {
	transport := c.getTransport()
	if transport == nil {
		return false
	}

	if err := transport.Connect(c.ctx); err != nil {
		if c.halted(err) {
			return false
		}
		return c.fail(newFailure(FailureReconnect, "connect", c.server, "Error connecting", err))
	}

	c.logger.Debug("establishing connection", "server", c.server)
	c.setState(StateAuthServer)

	return true
}

func (c *Candidate) stepAuthServer() bool {
	transport := c.getTransport()
	if transport == nil {
		return false
	}

	key, err := transport.ServerKey(c.ctx)
	if err != nil {
		if c.halted(err) {
			return false
		}
		return c.fail(newFailure(FailureKill, "auth-server", c.server, msgServerAuthFailed, err))
	}

	expected := c.session.cfg.FingerprintFor(key.Type)
	if key.Fingerprint == "" || key.Fingerprint != expected {
		c.logger.Debug("host key verification failed",
			"keyType", key.Type, "fingerprint", key.Fingerprint,
		)
		return c.fail(newFailure(FailureKill, "auth-server", c.server, msgServerAuthFailed, nil))
	}

	c.logger.Debug("connected", "server", c.server)

	// Commit to this candidate and cull the siblings before client auth,
	// so a passphrase prompt cannot bias the latency race.
	if !c.session.race.DeclareWinner(c) {
		return false
	}

	c.setState(StateAuthClient)

	return true
}

func (c *Candidate) stepAuthClient() bool {
	transport := c.getTransport()
	if transport == nil {
		return false
	}

	_, c.triedSet = c.session.cachedPassphrase()

	err := transport.Authenticate(c.ctx, c.session)
	if err == nil {
		c.logger.Debug("auth successful")
		c.setState(StateOpenChannel)
		return true
	}
	if c.halted(err) {
		return false
	}

	if !errors.Is(err, ErrAuthDenied) {
		return c.fail(newFailure(FailureReconnect, "auth-client", c.server, "Auth error", err))
	}

	killed := false
	if c.session.passphraseNeeded() {
		c.session.broker.RequestPassphrase(c)
	} else {
		c.session.killCandidate(c, newFailure(FailureKill, "auth-client", c.server, msgKeysNotFound, err))
		killed = true
	}

	if c.triedSet {
		c.session.status(msgPassphraseHint)
	}

	if killed {
		return false
	}

	// Suspend until the prompt resumes us with a fresh passphrase, then
	// loop on this state for another auth try.
	select {
	case <-c.ctx.Done():
		return false
	case <-c.resumeCh:
		return true
	}
}

// resume unblocks a candidate suspended on a passphrase prompt.
func (c *Candidate) resume() {
	select {
	case c.resumeCh <- struct{}{}:
	default:
	}
}

func (c *Candidate) stepOpenChannel() bool {
	transport := c.getTransport()
	if transport == nil {
		return false
	}

	if err := transport.OpenChannel(c.ctx); err != nil {
		if c.halted(err) {
			return false
		}
		return c.fail(newFailure(FailureReconnect, "open-channel", c.server, "Error opening channel", err))
	}

	c.logger.Debug("session channel opened")
	c.setState(StateBootstrap)

	return true
}

func (c *Candidate) stepBootstrap() bool {
	transport := c.getTransport()
	if transport == nil {
		return false
	}

	if err := transport.RequestSubsystem(c.ctx, SubsystemName); err != nil {
		if c.halted(err) {
			return false
		}
		return c.fail(newFailure(FailureReconnect, "bootstrap", c.server, "Error requesting subsystem", err))
	}

	c.logger.Debug("ready", "server", c.server)

	// Channel writes block the caller from here on, which keeps the
	// encoder flush path simple at the cost of stalling on slow links.
	c.bridge.Activate(c.session.cfg.encoder)
	c.setState(StateReady)
	c.session.noteReady(c)

	return true
}

func (c *Candidate) stepReady() bool {
	if err := c.bridge.drain(c.session.cfg.decoder); err != nil {
		if c.halted(err) {
			return false
		}
		return c.fail(newFailure(FailureReconnect, "read", c.server, "Error reading from channel", err))
	}

	transport := c.getTransport()
	if transport == nil {
		return false
	}
	if !transport.IsConnected() {
		return c.fail(newFailure(FailureReconnect, "read", c.server, "Disconnected", nil))
	}

	return true
}
