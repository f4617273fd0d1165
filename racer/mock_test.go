package racer

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fernwehq/sshrace/logger"
)

const testRSAFingerprint = "9f:11:22:33:44:55:66:77:88:99:aa:bb:cc:dd:ee:ff"

// mockTransport scripts one candidate's transport behavior.
type mockTransport struct {
	server string

	// connectGate, when non-nil, blocks Connect until the gate closes or
	// the candidate context is canceled.
	connectGate chan struct{}
	connectErr  error

	key    KeyInfo
	keyErr error

	mu        sync.Mutex
	authFunc  func(creds Credentials) error
	authCalls int
	lastCreds Credentials

	openErr error

	subMu     sync.Mutex
	subsystem string
	subErr    error

	written [][]byte

	readCh     chan struct{}
	dialing    atomic.Bool
	closeCount atomic.Int32
}

func newMockTransport(server string) *mockTransport {
	return &mockTransport{
		server: server,
		key:    KeyInfo{Type: KeyRSA, Fingerprint: testRSAFingerprint},
		readCh: make(chan struct{}),
	}
}

func (m *mockTransport) Connect(ctx context.Context) error {
	m.dialing.Store(true)
	if m.connectGate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.connectGate:
		}
	}
	return m.connectErr
}

func (m *mockTransport) ServerKey(_ context.Context) (KeyInfo, error) {
	return m.key, m.keyErr
}

func (m *mockTransport) Authenticate(_ context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.authCalls++
	m.lastCreds = creds
	if m.authFunc != nil {
		return m.authFunc(creds)
	}
	return nil
}

func (m *mockTransport) authenticateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.authCalls
}

func (m *mockTransport) OpenChannel(_ context.Context) error { return m.openErr }

func (m *mockTransport) RequestSubsystem(_ context.Context, name string) error {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.subsystem = name
	return m.subErr
}

func (m *mockTransport) requestedSubsystem() string {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	return m.subsystem
}

func (m *mockTransport) Read(_ []byte) (int, error) {
	<-m.readCh
	return 0, io.EOF
}

func (m *mockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.written = append(m.written, append([]byte(nil), p...))
	return len(p), nil
}

func (m *mockTransport) IsConnected() bool { return m.closeCount.Load() == 0 }

func (m *mockTransport) Close() error {
	if m.closeCount.Add(1) == 1 {
		close(m.readCh)
	}
	return nil
}

// stubDecoder accumulates committed channel bytes.
type stubDecoder struct {
	buf  [256]byte
	mu   sync.Mutex
	data []byte
}

func (d *stubDecoder) Buffer() []byte { return d.buf[:] }

func (d *stubDecoder) Commit(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.data = append(d.data, d.buf[:n]...)
}

func (d *stubDecoder) received() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]byte(nil), d.data...)
}

// stubEncoder records write-path activations.
type stubEncoder struct {
	mu    sync.Mutex
	flush func(p []byte) (int, error)
	calls int
}

func (e *stubEncoder) SetWriteReady(fn func(p []byte) (int, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.flush = fn
	e.calls++
}

func (e *stubEncoder) activations() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.calls
}

// memSurface captures prompt attachments for the test to answer.
type memSurface struct {
	mu       sync.Mutex
	labels   []string
	onSubmit func(text string)
	onAbort  func()
	err      error
}

func (s *memSurface) AttachPrompt(label string, onSubmit func(text string), onAbort func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.labels = append(s.labels, label)
	s.onSubmit = onSubmit
	s.onAbort = onAbort
	return nil
}

func (s *memSurface) promptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.labels)
}

func (s *memSurface) promptLabels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.labels...)
}

func (s *memSurface) submit(text string) {
	s.mu.Lock()
	fn := s.onSubmit
	s.onSubmit = nil
	s.onAbort = nil
	s.mu.Unlock()

	if fn != nil {
		fn(text)
	}
}

func (s *memSurface) abort() {
	s.mu.Lock()
	fn := s.onAbort
	s.onSubmit = nil
	s.onAbort = nil
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// statusRecorder captures user-visible status messages.
type statusRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *statusRecorder) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.msgs = append(r.msgs, msg)
}

func (r *statusRecorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.msgs...)
}

// testHarness bundles the collaborators a session test needs.
type testHarness struct {
	transports map[string]*mockTransport
	decoder    *stubDecoder
	encoder    *stubEncoder
	surface    *memSurface
	status     *statusRecorder
}

func newTestHarness(servers ...string) *testHarness {
	h := &testHarness{
		transports: make(map[string]*mockTransport, len(servers)),
		decoder:    &stubDecoder{},
		encoder:    &stubEncoder{},
		surface:    &memSurface{},
		status:     &statusRecorder{},
	}
	for _, server := range servers {
		h.transports[server] = newMockTransport(server)
	}
	return h
}

func (h *testHarness) factory(server string, _ string) (Transport, error) {
	m, ok := h.transports[server]
	if !ok {
		return nil, errors.New("no transport for " + server)
	}
	return m, nil
}

func (h *testHarness) config(t *testing.T, servers []string, opts ...Option) *Config {
	t.Helper()

	base := []Option{
		WithLogger(logger.NewSlog(logger.ErrorLevel, false)),
		WithRSAFingerprint(testRSAFingerprint),
		WithTransport(h.factory),
		WithPipeline(h.decoder, h.encoder),
		WithPromptSurface(h.surface),
		WithStatusHandler(h.status.record),
	}

	cfg, err := NewConfig(servers, append(base, opts...)...)
	require.NoError(t, err)
	return cfg
}

func (h *testHarness) session(t *testing.T, servers []string, opts ...Option) *Session {
	t.Helper()

	s, err := NewSession(context.Background(), h.config(t, servers, opts...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
