package racer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fernwehq/sshrace/logger"
)

func TestNewConfig(t *testing.T) {
	require := require.New(t)

	t.Run("Defaults", func(t *testing.T) {
		cfg, err := NewConfig([]string{"relay1.example.com", "relay2.example.com"})
		require.NoError(err)
		require.Equal([]string{"relay1.example.com", "relay2.example.com"}, cfg.Servers())
		require.Equal(22, cfg.Port())
		require.Empty(cfg.Identity())
		require.False(cfg.Compression())
		require.Equal(3*time.Second, cfg.ConnectTimeout())
		require.Equal(15*time.Second, cfg.HandshakeTimeout())
		require.NotNil(cfg.Logger())
	})

	t.Run("No Servers", func(t *testing.T) {
		_, err := NewConfig(nil)
		require.ErrorIs(err, ErrNoServers)

		_, err = NewConfig([]string{"relay1.example.com", " "})
		require.Error(err)
	})

	t.Run("Options", func(t *testing.T) {
		cfg, err := NewConfig([]string{"relay1.example.com"},
			WithPort(2200),
			WithRSAFingerprint("aa:bb"),
			WithECDSAFingerprint("cc:dd"),
			WithIdentity("relay_key"),
			WithCompression(true),
			WithConnectTimeout(5*time.Second),
			WithHandshakeTimeout(30*time.Second),
			WithLogger(logger.NewSlog(logger.ErrorLevel, false)),
		)
		require.NoError(err)
		require.Equal(2200, cfg.Port())
		require.Equal("aa:bb", cfg.FingerprintFor(KeyRSA))
		require.Equal("cc:dd", cfg.FingerprintFor(KeyECDSA))
		require.Empty(cfg.FingerprintFor(KeyUnknown))
		require.Equal("relay_key", cfg.Identity())
		require.True(cfg.Compression())
		require.Equal(5*time.Second, cfg.ConnectTimeout())
		require.Equal(30*time.Second, cfg.HandshakeTimeout())
	})

	t.Run("Option Validation", func(t *testing.T) {
		servers := []string{"relay1.example.com"}

		_, err := NewConfig(servers, WithPort(0))
		require.Error(err)
		_, err = NewConfig(servers, WithPort(65536))
		require.Error(err)
		_, err = NewConfig(servers, WithConnectTimeout(time.Millisecond))
		require.Error(err)
		_, err = NewConfig(servers, WithHandshakeTimeout(10*time.Minute))
		require.Error(err)
		_, err = NewConfig(servers, WithLogger(nil))
		require.Error(err)
		_, err = NewConfig(servers, WithStatusHandler(nil))
		require.Error(err)
		_, err = NewConfig(servers, WithTransport(nil))
		require.ErrorIs(err, ErrNoTransportFactory)
		_, err = NewConfig(servers, WithPipeline(nil, &stubEncoder{}))
		require.ErrorIs(err, ErrNoPipeline)
		_, err = NewConfig(servers, WithPromptSurface(nil))
		require.ErrorIs(err, ErrNoPromptSurface)
	})

	t.Run("Apply After Construction", func(t *testing.T) {
		cfg, err := NewConfig([]string{"relay1.example.com"})
		require.NoError(err)

		require.NoError(cfg.Apply(WithPort(2222)))
		require.Equal(2222, cfg.Port())
		require.Error(cfg.Apply(WithPort(-1)))
	})
}
