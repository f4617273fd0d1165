// Package sshconn implements the SSH transport used by the connection
// racer. It splits the usual monolithic SSH client handshake into the
// separate phases the candidate state machine steps through: dialing,
// host key inspection, client authentication, channel open and
// subsystem bootstrap.
//
// The host key phase works through a rendezvous gate. The handshake
// runs on its own goroutine with a host key callback that publishes the
// server's key and blocks until a verdict arrives; ServerKey hands the
// key to the caller for fingerprint pinning, and Authenticate releases
// the gate once the caller commits to the connection. A repeated
// authentication attempt redials internally and checks that the server
// presents the exact key accepted on the first attempt.
//
// Create transports through Factory:
//
//	cfg, _ := racer.NewConfig([]string{"relay.example.com"},
//		racer.WithRSAFingerprint("9f:3a:..."),
//	)
//	factory := sshconn.Factory(cfg)
package sshconn
