package racer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTeardown(t *testing.T) {
	require := require.New(t)

	t.Run("Torn-Down Candidate Holds No Transport", func(t *testing.T) {
		h := newTestHarness("a")
		s := h.session(t, []string{"a"})
		c := spawnIdle(s, "a")

		s.killCandidate(c, nil)

		require.True(c.released.Load())
		require.True(c.State().IsNone())
		require.Nil(c.getTransport())
	})

	t.Run("Teardown Overlapping Init", func(t *testing.T) {
		// Overlap the candidate's first steps with an external kill, as
		// happens when race resolution culls a sibling that is still
		// allocating its transport. Whatever the interleaving, the
		// transport ends up detached and closed at most once.
		for i := 0; i < 200; i++ {
			h := newTestHarness("a")
			s := h.session(t, []string{"a"})

			c := newCandidate(s, "a")
			s.candidates.Store(c.id, c)

			done := make(chan struct{})
			go func() {
				for c.step() {
				}
				close(done)
			}()
			s.killCandidate(c, nil)
			<-done

			require.True(c.released.Load())
			require.Nil(c.getTransport())
			require.LessOrEqual(h.transports["a"].closeCount.Load(), int32(1))
		}
	})

	t.Run("Repeated Teardown Is A No-Op", func(t *testing.T) {
		h := newTestHarness("a")
		s := h.session(t, []string{"a"})
		c := spawnIdle(s, "a")
		transport := c.getTransport().(*mockTransport)

		s.killCandidate(c, nil)
		s.reconnectCandidate(c, newFailure(FailureReconnect, "read", "a", "Disconnected", nil))

		require.Equal(int32(1), transport.closeCount.Load())
		require.Empty(h.status.messages())
	})
}
