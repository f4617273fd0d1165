package sshconn

import "errors"

var (
	// ErrTransportClosed indicates the operation ran on a closed transport.
	ErrTransportClosed = errors.New("sshconn: transport closed")
	// ErrNotConnected indicates the operation requires an established
	// protocol session.
	ErrNotConnected = errors.New("sshconn: not connected")
	// ErrHostKeyChanged indicates the server presented a different host key
	// on a repeated authentication attempt.
	ErrHostKeyChanged = errors.New("sshconn: host key changed between attempts")
	// ErrSubsystemRefused indicates the server rejected the subsystem
	// request on the session channel.
	ErrSubsystemRefused = errors.New("sshconn: subsystem request refused")
	// ErrHandshakeTimeout indicates the SSH handshake did not complete
	// within the configured deadline.
	ErrHandshakeTimeout = errors.New("sshconn: handshake timeout")
)
