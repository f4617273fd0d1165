package sshconn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/fernwehq/sshrace/logger"
	"github.com/fernwehq/sshrace/racer"
)

func TestLoadSigners(t *testing.T) {
	require := require.New(t)

	log := logger.NewSlog(logger.ErrorLevel, false)

	t.Run("Explicit Key", func(t *testing.T) {
		path, _ := writeClientKey(t, t.TempDir(), "relay_key", "")

		signers, err := loadSigners(path, &stubCreds{}, log)
		require.NoError(err)
		require.Len(signers, 1)
	})

	t.Run("Explicit Key Missing", func(t *testing.T) {
		_, err := loadSigners(filepath.Join(t.TempDir(), "absent"), &stubCreds{}, log)
		require.Error(err)
	})

	t.Run("Default Keys", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		sshDir := filepath.Join(home, ".ssh")
		require.NoError(os.MkdirAll(sshDir, 0o700))

		// Only one of the default names exists; the others are skipped
		// silently.
		writeClientKey(t, sshDir, "id_ed25519", "")

		signers, err := loadSigners("", &stubCreds{}, log)
		require.NoError(err)
		require.Len(signers, 1)
	})

	t.Run("No Default Keys", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		signers, err := loadSigners("", &stubCreds{}, log)
		require.NoError(err)
		require.Empty(signers)
	})

	t.Run("Encrypted Key Without Passphrase", func(t *testing.T) {
		path, _ := writeClientKey(t, t.TempDir(), "relay_key", "secret")

		creds := &stubCreds{}
		signers, err := loadSigners(path, creds, log)
		require.NoError(err)
		require.Empty(signers)
		require.True(creds.passphraseNeeded())
	})

	t.Run("Encrypted Key With Cached Passphrase", func(t *testing.T) {
		path, _ := writeClientKey(t, t.TempDir(), "relay_key", "secret")

		creds := &stubCreds{pass: "secret"}
		signers, err := loadSigners(path, creds, log)
		require.NoError(err)
		require.Len(signers, 1)
	})

	t.Run("Wrong Passphrase Is Skipped", func(t *testing.T) {
		path, _ := writeClientKey(t, t.TempDir(), "relay_key", "secret")

		creds := &stubCreds{pass: "typo"}
		signers, err := loadSigners(path, creds, log)
		require.NoError(err)
		require.Empty(signers)
	})
}

func TestClassifyKey(t *testing.T) {
	require := require.New(t)

	t.Run("RSA", func(t *testing.T) {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(err)
		pub, err := ssh.NewPublicKey(&priv.PublicKey)
		require.NoError(err)

		info := classifyKey(pub)
		require.Equal(racer.KeyRSA, info.Type)
		require.Equal(ssh.FingerprintLegacyMD5(pub), info.Fingerprint)
	})

	t.Run("ECDSA", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		require.NoError(err)
		pub, err := ssh.NewPublicKey(&priv.PublicKey)
		require.NoError(err)

		info := classifyKey(pub)
		require.Equal(racer.KeyECDSA, info.Type)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, pub := writeClientKeyPub(t)

		info := classifyKey(pub)
		require.Equal(racer.KeyUnknown, info.Type)
		require.NotEmpty(info.Fingerprint)
	})
}

func writeClientKeyPub(t *testing.T) (string, ssh.PublicKey) {
	t.Helper()
	return writeClientKey(t, t.TempDir(), "relay_key", "")
}
