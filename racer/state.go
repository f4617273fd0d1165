package racer

// State represents a candidate's progress through the connection handshake.
//
// States are totally ordered by handshake progress and never cycle: a
// candidate advances from StateInit to StateReady, and any teardown parks it
// back at StateNone permanently. StateAuthClient and StateReady may loop on
// themselves (passphrase retry and channel drain passes respectively).
type State uint32

const (
	// StateNone is both the pre-start and post-teardown state.
	StateNone State = iota
	// StateInit allocates the transport and resolves the identity key path.
	StateInit
	// StateConnect dials the remote server.
	StateConnect
	// StateAuthServer verifies the server host key against the pinned
	// fingerprint.
	StateAuthServer
	// StateAuthClient performs public-key client authentication.
	StateAuthClient
	// StateOpenChannel opens the session channel.
	StateOpenChannel
	// StateBootstrap requests the subsystem on the open channel.
	StateBootstrap
	// StateReady bridges channel bytes to the session byte pipeline.
	StateReady
)

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateInit:
		return "init"
	case StateConnect:
		return "connect"
	case StateAuthServer:
		return "auth-server"
	case StateAuthClient:
		return "auth-client"
	case StateOpenChannel:
		return "open-channel"
	case StateBootstrap:
		return "bootstrap"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// IsReady returns if the candidate has completed the handshake and is
// bridging bytes.
func (s State) IsReady() bool { return s == StateReady }

// IsNone returns if the candidate has not started or has been torn down.
func (s State) IsNone() bool { return s == StateNone }
