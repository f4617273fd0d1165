package racer

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("config is nil")

	// ErrNoServers indicates that the configuration holds no server addresses.
	ErrNoServers = errors.New("no server addresses configured")

	// ErrNoTransportFactory indicates that no transport factory was configured.
	ErrNoTransportFactory = errors.New("no transport factory configured")

	// ErrNoPipeline indicates that no byte pipeline was configured.
	ErrNoPipeline = errors.New("no byte pipeline configured")

	// ErrNoPromptSurface indicates that no prompt surface was configured.
	ErrNoPromptSurface = errors.New("no prompt surface configured")
)

var (
	// ErrSessionClosed indicates that the session has been closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionOpened indicates that Open was called more than once.
	ErrSessionOpened = errors.New("session already opened")

	// ErrChannelReleased indicates that the candidate bridging the byte
	// pipeline has been torn down.
	ErrChannelReleased = errors.New("channel released")

	// ErrAllCandidatesFailed indicates that every connection attempt was torn
	// down before any reached the ready state.
	ErrAllCandidatesFailed = errors.New("all connection attempts failed")

	// ErrAuthDenied is returned by a Transport when public-key client
	// authentication is denied. The candidate either prompts for a passphrase
	// or gives up, depending on whether an encrypted identity key was seen.
	ErrAuthDenied = errors.New("client authentication denied")
)
