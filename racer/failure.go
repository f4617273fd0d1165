package racer

import "fmt"

// User-visible failure messages. They reach the user only when the failing
// candidate was the session's last.
const (
	msgServerAuthFailed = "Cannot authenticate server"
	msgKeysNotFound     = "SSH keys not found. Run 'ssh-keygen' to create keys and try again."
	msgPassphraseHint   = "Can't load SSH key. Try typing passphrase again in case of typo. ctrl-c to abort."
)

// FailureKind classifies how a candidate failure is handled.
type FailureKind uint8

const (
	// FailureReconnect tears the candidate down and abandons the attempt.
	// A retry is intended but not yet scheduled.
	FailureReconnect FailureKind = iota
	// FailureKill tears the candidate down permanently; no retry ever occurs.
	FailureKill
	// FailureFatal reports a local resource failure to the owning session.
	FailureFatal
)

// String returns string representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureReconnect:
		return "reconnect"
	case FailureKill:
		return "kill"
	case FailureFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Failure describes why a candidate was torn down. It travels as a
// structured error; the user-visible text is rendered only at the
// status-message boundary.
type Failure struct {
	// Kind selects the teardown path.
	Kind FailureKind
	// Op names the handshake step that failed.
	Op string
	// Server is the candidate's server address.
	Server string
	// Text is the user-facing message, may be empty.
	Text string
	// Err is the underlying cause, may be nil.
	Err error
}

func newFailure(kind FailureKind, op string, server string, text string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, Server: server, Text: text, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", f.Server, f.Op, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", f.Server, f.Op, f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

// UserMessage renders the text surfaced when this failure ends the
// session's last candidate. Reconnect failures carry their cause; kill
// messages stand alone.
func (f *Failure) UserMessage() string {
	if f.Text == "" {
		return ""
	}
	if f.Kind == FailureReconnect && f.Err != nil {
		return f.Text + ": " + f.Err.Error()
	}
	return f.Text
}
