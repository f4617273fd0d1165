// Package racer establishes a secure, authenticated, multiplexed data
// channel to one of several redundant servers by racing concurrent
// connection attempts and committing to the first one that passes host-key
// pinning.
//
// A Session owns one candidate per configured server address. Each
// candidate drives its own connection attempt through a staged handshake
// (connect, server authentication, client authentication, channel open,
// subsystem bootstrap) on a goroutine managed by the session. The moment a
// candidate's host key matches the pinned fingerprint, the race is resolved:
// every sibling candidate is destroyed synchronously, and only the winner
// goes on to client authentication and channel bootstrap. The winner's
// channel is then bridged to the session-wide byte pipeline.
//
// Collaborators are injected through the session configuration:
//   - Transport: the secure-transport engine for one server attempt
//     (production implementation in the sshconn package).
//   - Decoder/Encoder: the byte pipeline turning channel bytes into typed
//     application messages and back.
//   - PromptSurface: the interactive input used to ask for a key
//     passphrase (production implementation in the prompt package).
//
// Failure handling distinguishes three severities: kill (permanent, e.g.
// host-key mismatch), reconnect (attempt abandoned; retry is intended but
// not yet scheduled), and fatal (local resource failure reported to the
// owning session). A failure message becomes user-visible only when the
// failing candidate was the session's last; otherwise it is logged at
// debug level since a sibling may still win.
//
// Usage:
//
//	cfg, err := racer.NewConfig([]string{"relay1.example.net", "relay2.example.net"},
//	    racer.WithRSAFingerprint("16:27:ac:a5:76:28:2d:36:63:1b:56:4d:eb:df:a6:48"),
//	    racer.WithPipeline(decoder, encoder),
//	    racer.WithPromptSurface(prompt.NewTerminal(nil)),
//	)
//	// ... handle error ...
//
//	// The SSH transport needs the finished config, so it binds afterwards.
//	err = cfg.Apply(racer.WithTransport(sshconn.Factory(cfg)))
//	// ... handle error ...
//
//	session, err := racer.NewSession(ctx, cfg)
//	// ... handle error ...
//	defer session.Close()
//
//	// Open all candidates and wait for the race to produce a ready channel.
//	err = session.Open(true)
package racer
