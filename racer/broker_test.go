package racer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredentialBroker(t *testing.T) {
	require := require.New(t)

	t.Run("Concurrent Requests Collapse", func(t *testing.T) {
		h := newTestHarness("a")
		s := h.session(t, []string{"a"})
		c := spawnIdle(s, "a")

		s.broker.RequestPassphrase(c)
		s.broker.RequestPassphrase(c)

		require.Equal(1, h.surface.promptCount())
	})

	t.Run("Submit Caches And Resumes", func(t *testing.T) {
		h := newTestHarness("a")
		s := h.session(t, []string{"a"})
		c := spawnIdle(s, "a")

		s.broker.RequestPassphrase(c)
		h.surface.submit("hunter2")

		require.Equal("hunter2", s.Passphrase())
		pass, set := s.cachedPassphrase()
		require.Equal("hunter2", pass)
		require.True(set)

		select {
		case <-c.resumeCh:
		default:
			t.Fatal("candidate was not resumed")
		}

		// The pending latch cleared, so a later denial can prompt again.
		s.broker.RequestPassphrase(c)
		require.Equal(2, h.surface.promptCount())
	})

	t.Run("Abort Clears Pending", func(t *testing.T) {
		h := newTestHarness("a")
		s := h.session(t, []string{"a"})
		c := spawnIdle(s, "a")

		s.broker.RequestPassphrase(c)
		require.Equal(1, h.surface.promptCount())
		h.surface.abort()

		// A dismissed prompt does not resume the candidate, but it must
		// not wedge the broker either.
		select {
		case <-c.resumeCh:
			t.Fatal("aborted prompt resumed the candidate")
		default:
		}

		s.broker.RequestPassphrase(c)
		require.Equal(2, h.surface.promptCount())
	})

	t.Run("Attach Failure Clears Pending", func(t *testing.T) {
		h := newTestHarness("a")
		h.surface.err = errors.New("no terminal")
		s := h.session(t, []string{"a"})
		c := spawnIdle(s, "a")

		s.broker.RequestPassphrase(c)
		require.Equal(0, h.surface.promptCount())

		h.surface.err = nil
		s.broker.RequestPassphrase(c)
		require.Equal(1, h.surface.promptCount())
	})
}
