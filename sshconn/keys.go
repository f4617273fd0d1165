package sshconn

import (
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/fernwehq/sshrace/racer"
)

const ecdsaKeyPrefix = "ecdsa-sha2-"

// classifyKey maps a wire host key to its pinning classification. The
// fingerprint is the legacy lowercase colon-separated MD5 digest, which is
// what pinned fingerprints are expressed in.
func classifyKey(key ssh.PublicKey) racer.KeyInfo {
	info := racer.KeyInfo{Fingerprint: ssh.FingerprintLegacyMD5(key)}

	switch {
	case key.Type() == ssh.KeyAlgoRSA:
		info.Type = racer.KeyRSA
	case strings.HasPrefix(key.Type(), ecdsaKeyPrefix):
		info.Type = racer.KeyECDSA
	default:
		info.Type = racer.KeyUnknown
	}

	return info
}
