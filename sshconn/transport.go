package sshconn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/fernwehq/sshrace/internal/pool"
	"github.com/fernwehq/sshrace/logger"
	"github.com/fernwehq/sshrace/racer"
)

// Factory returns a transport factory bound to cfg. Each candidate gets
// its own Transport dialing cfg's port on the candidate's server.
func Factory(cfg *racer.Config) racer.TransportFactory {
	return func(server string, identityPath string) (racer.Transport, error) {
		return New(server, identityPath, cfg)
	}
}

// handshakeResult carries the outcome of one NewClientConn attempt from
// the handshake goroutine back to the candidate's goroutine.
type handshakeResult struct {
	conn ssh.Conn
	err  error
}

// Transport is one SSH connection attempt. It implements racer.Transport
// on top of golang.org/x/crypto/ssh, exposing the handshake as the
// separate phases the candidate state machine drives.
//
// Candidate methods run on the candidate's goroutine; only Close may be
// called concurrently, and it unblocks any phase in flight.
type Transport struct {
	server           string
	addr             string
	identityPath     string
	connectTimeout   time.Duration
	handshakeTimeout time.Duration
	compression      bool
	logger           logger.Logger

	mu      sync.Mutex
	tcp     net.Conn
	conn    ssh.Conn
	channel ssh.Channel

	// Rendezvous gate for the first handshake. The host key callback
	// publishes the server key on keyCh and blocks on verdictCh until
	// Authenticate (or Close) releases it. All three channels have
	// capacity one so no side ever blocks on a peer that already left.
	keyCh     chan ssh.PublicKey
	verdictCh chan error
	doneCh    chan handshakeResult

	// awaitingVerdict is true between ServerKey handing out the key and
	// Authenticate releasing the gate.
	awaitingVerdict bool

	// hostKey remembers the wire encoding of the accepted host key so a
	// repeated auth attempt can verify the server presents the same one.
	hostKey []byte

	creds racer.Credentials

	connected atomic.Bool
	closed    atomic.Bool
}

var _ racer.Transport = (*Transport)(nil)

// New creates a Transport for one server using cfg's connection settings.
func New(server string, identityPath string, cfg *racer.Config) (*Transport, error) {
	if cfg == nil {
		return nil, racer.ErrConfigNil
	}

	return &Transport{
		server:           server,
		addr:             net.JoinHostPort(server, strconv.Itoa(cfg.Port())),
		identityPath:     identityPath,
		connectTimeout:   cfg.ConnectTimeout(),
		handshakeTimeout: cfg.HandshakeTimeout(),
		compression:      cfg.Compression(),
		logger:           cfg.Logger().With("server", server),
		keyCh:            make(chan ssh.PublicKey, 1),
		verdictCh:        make(chan error, 1),
		doneCh:           make(chan handshakeResult, 1),
	}, nil
}

// Connect dials the TCP connection.
func (t *Transport) Connect(ctx context.Context) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}

	nc, err := t.dial(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.tcp = nc
	t.mu.Unlock()

	if t.compression {
		// The SSH implementation does not negotiate zlib, so the option
		// is accepted but has no effect.
		t.logger.Debug("compression requested but not supported, continuing without")
	}

	return nil
}

func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: t.connectTimeout}

	nc, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.addr, err)
	}

	if tcp, ok := nc.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	return nc, nil
}

// ServerKey starts the SSH handshake and returns the host key the server
// presented. The handshake stays suspended on its rendezvous gate until
// Authenticate releases it, so the caller can verify the fingerprint
// before any authentication traffic is sent.
func (t *Transport) ServerKey(ctx context.Context) (racer.KeyInfo, error) {
	t.mu.Lock()
	nc := t.tcp
	t.mu.Unlock()

	if t.closed.Load() {
		return racer.KeyInfo{}, ErrTransportClosed
	}
	if nc == nil {
		return racer.KeyInfo{}, ErrNotConnected
	}

	go t.handshake(nc, t.gateHostKey)

	timer := pool.GetTimer(t.handshakeTimeout)
	defer pool.PutTimer(timer)

	select {
	case key := <-t.keyCh:
		t.hostKey = key.Marshal()
		t.awaitingVerdict = true
		return classifyKey(key), nil
	case res := <-t.doneCh:
		// The handshake failed before the host key callback ran.
		if res.err == nil {
			res.err = ErrNotConnected
		}
		return racer.KeyInfo{}, res.err
	case <-timer.C:
		_ = t.Close()
		return racer.KeyInfo{}, ErrHandshakeTimeout
	case <-ctx.Done():
		_ = t.Close()
		return racer.KeyInfo{}, ctx.Err()
	}
}

// Authenticate performs public-key client authentication. On the first
// call it releases the handshake gate opened by ServerKey; on later calls
// the previous protocol session is gone after the denial, so it redials
// and re-handshakes, requiring the server to present the host key byte
// for byte as accepted before.
func (t *Transport) Authenticate(ctx context.Context, creds racer.Credentials) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}

	t.creds = creds

	if t.awaitingVerdict {
		t.awaitingVerdict = false
		t.verdictCh <- nil
	} else {
		nc, err := t.dial(ctx)
		if err != nil {
			return err
		}
		t.mu.Lock()
		if t.tcp != nil {
			_ = t.tcp.Close()
		}
		t.tcp = nc
		t.mu.Unlock()

		go t.handshake(nc, t.pinnedHostKey)
	}

	timer := pool.GetTimer(t.handshakeTimeout)
	defer pool.PutTimer(timer)

	select {
	case res := <-t.doneCh:
		if res.err != nil {
			if isAuthDenied(res.err) {
				return fmt.Errorf("%w: %w", racer.ErrAuthDenied, res.err)
			}
			return res.err
		}
		t.mu.Lock()
		t.conn = res.conn
		t.mu.Unlock()
		t.connected.Store(true)
		return nil
	case <-timer.C:
		_ = t.Close()
		return ErrHandshakeTimeout
	case <-ctx.Done():
		_ = t.Close()
		return ctx.Err()
	}
}

func (t *Transport) handshake(nc net.Conn, hostKeyCB ssh.HostKeyCallback) {
	cfg := &ssh.ClientConfig{
		User:            racer.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(t.signers)},
		HostKeyCallback: hostKeyCB,
		Timeout:         t.handshakeTimeout,
	}

	conn, chans, reqs, err := ssh.NewClientConn(nc, t.addr, cfg)
	if err != nil {
		t.doneCh <- handshakeResult{err: err}
		return
	}

	go ssh.DiscardRequests(reqs)
	go rejectChannels(chans)

	t.doneCh <- handshakeResult{conn: conn}
}

func rejectChannels(chans <-chan ssh.NewChannel) {
	for newChan := range chans {
		_ = newChan.Reject(ssh.Prohibited, "no channels accepted")
	}
}

// gateHostKey runs inside the handshake goroutine during key exchange. It
// publishes the server key and blocks until a verdict arrives from
// Authenticate or Close.
func (t *Transport) gateHostKey(_ string, _ net.Addr, key ssh.PublicKey) error {
	t.keyCh <- key
	return <-t.verdictCh
}

// pinnedHostKey verifies a repeated handshake against the key accepted on
// the first one.
func (t *Transport) pinnedHostKey(_ string, _ net.Addr, key ssh.PublicKey) error {
	if !bytes.Equal(key.Marshal(), t.hostKey) {
		return ErrHostKeyChanged
	}
	return nil
}

func (t *Transport) signers() ([]ssh.Signer, error) {
	return loadSigners(t.identityPath, t.creds, t.logger)
}

// isAuthDenied reports whether err is the server refusing every offered
// auth method. The SSH package has no typed error for this.
func isAuthDenied(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}

// OpenChannel opens the session channel.
func (t *Transport) OpenChannel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	ch, reqs, err := conn.OpenChannel("session", nil)
	if err != nil {
		return fmt.Errorf("open session channel: %w", err)
	}
	go ssh.DiscardRequests(reqs)

	t.mu.Lock()
	t.channel = ch
	t.mu.Unlock()

	return nil
}

// RequestSubsystem requests the named subsystem on the session channel.
func (t *Transport) RequestSubsystem(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	ch := t.channel
	t.mu.Unlock()

	if ch == nil {
		return ErrNotConnected
	}

	ok, err := ch.SendRequest("subsystem", true, ssh.Marshal(struct{ Subsystem string }{name}))
	if err != nil {
		return fmt.Errorf("request subsystem %q: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrSubsystemRefused, name)
	}

	return nil
}

// Read reads inbound bytes from the session channel.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	ch := t.channel
	t.mu.Unlock()

	if ch == nil {
		return 0, ErrNotConnected
	}

	return ch.Read(p)
}

// Write writes outbound bytes to the session channel, blocking until the
// channel accepts them.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	ch := t.channel
	t.mu.Unlock()

	if ch == nil {
		return 0, ErrNotConnected
	}

	return ch.Write(p)
}

// IsConnected reports whether the protocol session is established and the
// transport has not been closed.
func (t *Transport) IsConnected() bool {
	return t.connected.Load() && !t.closed.Load()
}

// Close releases the channel, the protocol session and the TCP connection
// together. It unblocks a handshake suspended on the rendezvous gate and
// is safe to call more than once.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.connected.Store(false)

	// Unblock a host key callback waiting for its verdict. The channel
	// has capacity one, so the verdict parks there even when the
	// callback has not run yet.
	select {
	case t.verdictCh <- ErrTransportClosed:
	default:
	}

	t.mu.Lock()
	ch, conn, tcp := t.channel, t.conn, t.tcp
	t.channel, t.conn, t.tcp = nil, nil, nil
	t.mu.Unlock()

	var errs []error
	if ch != nil {
		if err := ch.Close(); !ignorableCloseErr(err) {
			errs = append(errs, err)
		}
	}
	if conn != nil {
		if err := conn.Close(); !ignorableCloseErr(err) {
			errs = append(errs, err)
		}
	}
	if tcp != nil {
		if err := tcp.Close(); !ignorableCloseErr(err) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ignorableCloseErr filters the errors an already-dead connection reports
// on Close.
func ignorableCloseErr(err error) bool {
	return err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
