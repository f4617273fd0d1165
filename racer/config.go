package racer

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fernwehq/sshrace/logger"
)

// Config represents the configuration parameters of a Session.
type Config struct {
	mu sync.RWMutex

	// servers holds one address per redundant server; a candidate is raced
	// against each of them.
	servers []string

	// port specifies the TCP port of the remote servers.
	// Defaults to 22.
	port int

	// rsaFingerprint is the pinned MD5 hex fingerprint expected from servers
	// presenting an RSA host key. An empty value never matches.
	rsaFingerprint string

	// ecdsaFingerprint is the pinned MD5 hex fingerprint expected from
	// servers presenting an ECDSA host key. An empty value never matches.
	ecdsaFingerprint string

	// identity names the identity key used for client authentication. A
	// value containing a path separator is used verbatim; a bare name is
	// looked up in the per-user default key directory. Empty means the
	// transport's default identity files apply.
	identity string

	// compression requests transport compression. Whether the transport
	// honors it is implementation-defined.
	compression bool

	// connectTimeout bounds the TCP dial of one candidate. It should be
	// between 1 and 30 seconds. Defaults to 3 seconds.
	connectTimeout time.Duration

	// handshakeTimeout bounds one handshake stage (server key retrieval or
	// client authentication). It should be between 1 and 120 seconds.
	// Defaults to 15 seconds.
	handshakeTimeout time.Duration

	// statusHandler receives user-visible status messages. When nil,
	// messages are logged at info level instead.
	statusHandler func(msg string)

	// factory creates the transport for each candidate.
	factory TransportFactory

	// decoder and encoder form the session-wide byte pipeline, wired to the
	// winning candidate only.
	decoder Decoder
	encoder Encoder

	// surface is the prompt surface the credential broker attaches
	// passphrase prompts to.
	surface PromptSurface

	// logger provides a logger instance for session and candidate events.
	logger logger.Logger
}

// NewConfig creates a session configuration for the given server addresses
// with optional functional options.
//
// It initializes a Config with default values and then applies the provided
// options. See the WithXXX functions for available options. The transport
// factory, byte pipeline, and prompt surface have no defaults and must be
// supplied before the config is handed to NewSession.
func NewConfig(servers []string, opts ...Option) (*Config, error) {
	cfg := &Config{
		servers:          append([]string(nil), servers...),
		port:             22,
		connectTimeout:   3 * time.Second,
		handshakeTimeout: 15 * time.Second,
		logger:           logger.GetLogger(),
	}

	if len(cfg.servers) == 0 {
		return cfg, ErrNoServers
	}
	for _, server := range cfg.servers {
		if strings.TrimSpace(server) == "" {
			return cfg, errors.New("server address is empty")
		}
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Apply applies additional options to an existing config. It exists to
// bind collaborators that themselves need the config, such as a transport
// factory built from it. Apply must not be called after the config is
// handed to NewSession.
func (cfg *Config) Apply(opts ...Option) error {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return err
		}
	}

	return nil
}

// Servers returns a copy of the configured server addresses.
func (cfg *Config) Servers() []string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return append([]string(nil), cfg.servers...)
}

// Port returns the configured server port.
func (cfg *Config) Port() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.port
}

// Identity returns the configured identity key name.
func (cfg *Config) Identity() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.identity
}

// Compression returns whether transport compression was requested.
func (cfg *Config) Compression() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.compression
}

// ConnectTimeout returns the TCP dial timeout for one candidate.
func (cfg *Config) ConnectTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.connectTimeout
}

// HandshakeTimeout returns the per-stage handshake timeout.
func (cfg *Config) HandshakeTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.handshakeTimeout
}

// Logger returns the configured logger.
func (cfg *Config) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// FingerprintFor returns the pinned fingerprint expected for the given host
// key type. Unrecognized key types map to an empty fingerprint, which never
// matches.
func (cfg *Config) FingerprintFor(t KeyType) string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	switch t {
	case KeyRSA:
		return cfg.rsaFingerprint
	case KeyECDSA:
		return cfg.ecdsaFingerprint
	default:
		return ""
	}
}

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name string
	f    func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error { return o.f(cfg) }

func newOptFunc(name string, f func(*Config) error) Option {
	return &optFunc{name: name, f: f}
}

// WithPort sets the TCP port of the remote servers.
func WithPort(port int) Option {
	return newOptFunc("WithPort", func(cfg *Config) error {
		if port < 1 || port > 65535 {
			return errors.New("port should be in range of [1, 65535]")
		}
		cfg.port = port
		return nil
	})
}

// WithRSAFingerprint pins the MD5 hex fingerprint expected from servers
// presenting an RSA host key.
func WithRSAFingerprint(fingerprint string) Option {
	return newOptFunc("WithRSAFingerprint", func(cfg *Config) error {
		cfg.rsaFingerprint = fingerprint
		return nil
	})
}

// WithECDSAFingerprint pins the MD5 hex fingerprint expected from servers
// presenting an ECDSA host key.
func WithECDSAFingerprint(fingerprint string) Option {
	return newOptFunc("WithECDSAFingerprint", func(cfg *Config) error {
		cfg.ecdsaFingerprint = fingerprint
		return nil
	})
}

// WithIdentity names the identity key used for client authentication. See
// ResolveIdentity for the lookup rule.
func WithIdentity(identity string) Option {
	return newOptFunc("WithIdentity", func(cfg *Config) error {
		cfg.identity = identity
		return nil
	})
}

// WithCompression requests transport compression.
func WithCompression(enable bool) Option {
	return newOptFunc("WithCompression", func(cfg *Config) error {
		cfg.compression = enable
		return nil
	})
}

// WithConnectTimeout sets the TCP dial timeout for one candidate. It should
// be between 1 and 30 seconds.
func WithConnectTimeout(timeout time.Duration) Option {
	return newOptFunc("WithConnectTimeout", func(cfg *Config) error {
		if timeout < time.Second || timeout > 30*time.Second {
			return errors.New("connect timeout should be in range of [1s, 30s]")
		}
		cfg.connectTimeout = timeout
		return nil
	})
}

// WithHandshakeTimeout sets the per-stage handshake timeout. It should be
// between 1 and 120 seconds.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return newOptFunc("WithHandshakeTimeout", func(cfg *Config) error {
		if timeout < time.Second || timeout > 120*time.Second {
			return errors.New("handshake timeout should be in range of [1s, 120s]")
		}
		cfg.handshakeTimeout = timeout
		return nil
	})
}

// WithLogger sets the logger used for session and candidate events.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l
		return nil
	})
}

// WithStatusHandler sets the handler receiving user-visible status messages.
func WithStatusHandler(handler func(msg string)) Option {
	return newOptFunc("WithStatusHandler", func(cfg *Config) error {
		if handler == nil {
			return errors.New("status handler is nil")
		}
		cfg.statusHandler = handler
		return nil
	})
}

// WithTransport sets the factory creating each candidate's transport.
func WithTransport(factory TransportFactory) Option {
	return newOptFunc("WithTransport", func(cfg *Config) error {
		if factory == nil {
			return ErrNoTransportFactory
		}
		cfg.factory = factory
		return nil
	})
}

// WithPipeline sets the session byte pipeline wired to the winning
// candidate.
func WithPipeline(decoder Decoder, encoder Encoder) Option {
	return newOptFunc("WithPipeline", func(cfg *Config) error {
		if decoder == nil || encoder == nil {
			return ErrNoPipeline
		}
		cfg.decoder = decoder
		cfg.encoder = encoder
		return nil
	})
}

// WithPromptSurface sets the surface passphrase prompts attach to.
func WithPromptSurface(surface PromptSurface) Option {
	return newOptFunc("WithPromptSurface", func(cfg *Config) error {
		if surface == nil {
			return ErrNoPromptSurface
		}
		cfg.surface = surface
		return nil
	})
}
