package racer

import "sync/atomic"

// IOBridge couples a ready candidate's transport to the session's
// encoder and decoder. It stays inert until the candidate finishes
// bootstrapping; the race coordinator relies on at most one bridge ever
// becoming active.
type IOBridge struct {
	candidate *Candidate
	active    atomic.Bool
}

func newIOBridge(c *Candidate) *IOBridge {
	return &IOBridge{candidate: c}
}

// Active reports whether the bridge has been wired to the pipeline.
func (b *IOBridge) Active() bool {
	return b.active.Load()
}

// Activate wires the encoder's write path to the transport. It is a
// no-op if the bridge is already active.
func (b *IOBridge) Activate(enc Encoder) {
	if !b.active.CompareAndSwap(false, true) {
		return
	}
	enc.SetWriteReady(b.flush)
}

// flush writes p to the transport, looping over short writes. A write
// error tears the candidate down unless the candidate was already halted.
func (b *IOBridge) flush(p []byte) (int, error) {
	c := b.candidate

	transport := c.getTransport()
	if transport == nil {
		return 0, ErrChannelReleased
	}

	written := 0
	for written < len(p) {
		n, err := transport.Write(p[written:])
		written += n
		if err != nil {
			if !c.halted(err) {
				c.session.reconnectCandidate(c, newFailure(
					FailureReconnect, "write", c.server, "Error writing to channel", err,
				))
			}
			return written, err
		}
	}

	return written, nil
}

// drain performs one read pass: it fills the decoder's buffer from the
// transport and commits whatever arrived.
func (b *IOBridge) drain(dec Decoder) error {
	transport := b.candidate.getTransport()
	if transport == nil {
		return ErrChannelReleased
	}

	buf := dec.Buffer()
	n, err := transport.Read(buf)
	if n > 0 {
		dec.Commit(n)
	}

	return err
}
