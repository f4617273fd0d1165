package racer

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveIdentity resolves a configured identity-key name to a file path.
//
// A name containing a path separator is used verbatim. A bare name is
// looked up in the per-user default key directory (~/.ssh). An empty name
// resolves to the empty string, meaning the transport's default identity
// files apply.
func ResolveIdentity(identity string) (string, error) {
	if identity == "" {
		return "", nil
	}

	if strings.ContainsRune(identity, '/') || strings.ContainsRune(identity, os.PathSeparator) {
		return identity, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".ssh", identity), nil
}
