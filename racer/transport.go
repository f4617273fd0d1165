package racer

import "context"

// Fixed protocol constants. Every connection authenticates as the relay
// user and boots the relay subsystem on its session channel.
const (
	// Username is the user every connection authenticates as.
	Username = "relay"
	// SubsystemName is the subsystem requested on the session channel.
	SubsystemName = "relay"
)

// KeyType identifies the algorithm family of a server host key. Only RSA
// and ECDSA keys carry a pinned fingerprint; any other type always fails
// verification.
type KeyType int

const (
	KeyUnknown KeyType = iota
	KeyRSA
	KeyECDSA
)

// String returns string representation of the key type.
func (t KeyType) String() string {
	switch t {
	case KeyRSA:
		return "rsa"
	case KeyECDSA:
		return "ecdsa"
	default:
		return "unknown"
	}
}

// KeyInfo describes the host key a server presented during the handshake.
type KeyInfo struct {
	Type KeyType
	// Fingerprint is the lowercase colon-separated hex MD5 digest of the key.
	Fingerprint string
}

// Credentials supplies the passphrase used to decrypt identity keys during
// client authentication. The transport calls NotePassphraseNeeded the first
// time it encounters an encrypted key; it never prompts the user itself,
// it only marks that a prompt may later be needed.
type Credentials interface {
	// Passphrase returns the session's cached passphrase, empty when none
	// has been submitted yet.
	Passphrase() string
	// NotePassphraseNeeded records that an encrypted identity key exists.
	NotePassphraseNeeded()
}

// Transport is one server connection attempt as seen by the candidate state
// machine. Implementations own both the protocol session and its channel;
// Close releases them together, must be safe to call more than once, and
// must unblock any in-flight operation.
type Transport interface {
	// Connect dials the remote server.
	Connect(ctx context.Context) error
	// ServerKey returns the host key presented by the server. It is only
	// valid after Connect succeeds.
	ServerKey(ctx context.Context) (KeyInfo, error)
	// Authenticate performs public-key client authentication, using creds
	// to decrypt encrypted identity keys. A denial is reported as
	// ErrAuthDenied (possibly wrapped); any other error is a protocol
	// failure.
	Authenticate(ctx context.Context, creds Credentials) error
	// OpenChannel opens the session channel after authentication.
	OpenChannel(ctx context.Context) error
	// RequestSubsystem requests the named subsystem on the open channel.
	RequestSubsystem(ctx context.Context, name string) error
	// Read reads inbound channel bytes.
	Read(p []byte) (int, error)
	// Write writes outbound channel bytes, blocking until accepted.
	Write(p []byte) (int, error)
	// IsConnected reports whether the protocol session is still alive.
	IsConnected() bool
	// Close releases the channel and the protocol session together.
	Close() error
}

// TransportFactory creates the transport for one candidate. server is the
// address configured for that candidate and identityPath the resolved
// identity key path, empty when none is configured.
type TransportFactory func(server string, identityPath string) (Transport, error)

// Decoder is the inbound half of the session byte pipeline. It hands out
// writable buffer space and consumes committed bytes, dispatching
// fully-parsed messages as they accumulate.
type Decoder interface {
	// Buffer returns writable space for the next chunk of channel bytes.
	Buffer() []byte
	// Commit consumes n bytes previously written into the buffer.
	Commit(n int)
}

// Encoder is the outbound half of the session byte pipeline. Whenever it
// has buffered bytes it invokes the registered flush callback, which
// reports how many bytes were written so the encoder can drain that
// portion.
type Encoder interface {
	SetWriteReady(fn func(p []byte) (int, error))
}

// PromptSurface is the interactive text-input collaborator used to ask the
// user for a passphrase. Implementations guarantee at most one active
// prompt per surface and invoke exactly one of the callbacks: onSubmit
// when the user confirms, onAbort when the prompt is dismissed.
type PromptSurface interface {
	AttachPrompt(label string, onSubmit func(text string), onAbort func()) error
}
