package sshconn

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/fernwehq/sshrace/logger"
	"github.com/fernwehq/sshrace/racer"
)

// defaultIdentityNames are the key files tried under ~/.ssh when no
// identity is configured.
var defaultIdentityNames = []string{"id_rsa", "id_ecdsa", "id_ed25519"}

// loadSigners parses the identity keys available for client auth. An
// explicitly configured identity must be readable; default identities are
// skipped silently when absent. Encrypted keys are decrypted with the
// cached passphrase when one exists, otherwise they are noted with the
// credential source and skipped so the resulting auth denial triggers a
// prompt.
func loadSigners(identityPath string, creds racer.Credentials, log logger.Logger) ([]ssh.Signer, error) {
	explicit := identityPath != ""

	var paths []string
	if explicit {
		paths = []string{identityPath}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		for _, name := range defaultIdentityNames {
			paths = append(paths, filepath.Join(home, ".ssh", name))
		}
	}

	var signers []ssh.Signer
	for _, path := range paths {
		pemBytes, err := os.ReadFile(path)
		if err != nil {
			if explicit {
				return nil, err
			}
			if !os.IsNotExist(err) {
				log.Debug("failed to read identity key", "path", path, "error", err)
			}
			continue
		}

		signer, err := parseSigner(pemBytes, creds, path, log)
		if err != nil {
			log.Debug("failed to parse identity key", "path", path, "error", err)
			continue
		}
		if signer != nil {
			signers = append(signers, signer)
		}
	}

	return signers, nil
}

func parseSigner(pemBytes []byte, creds racer.Credentials, path string, log logger.Logger) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(pemBytes)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, err
	}

	creds.NotePassphraseNeeded()

	pass := creds.Passphrase()
	if pass == "" {
		// No passphrase cached yet. Skipping the key makes auth fail,
		// which is what triggers the prompt.
		return nil, nil
	}

	signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(pass))
	if err != nil {
		log.Debug("failed to decrypt identity key", "path", path, "error", err)
		return nil, nil
	}

	return signer, nil
}
