// Package pathutil resolves user-supplied filesystem paths from config.
package pathutil

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Expand substitutes environment variables and a leading "~" then cleans
// the result. An empty path stays empty.
func Expand(path string) (string, error) {
	p := os.ExpandEnv(strings.TrimSpace(path))
	if p == "" {
		return "", nil
	}

	rest, tilde := strings.CutPrefix(p, "~")
	if tilde && (rest == "" || rest[0] == '/') {
		home, err := homeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		p = home + rest
	}
	return filepath.Clean(p), nil
}

// homeDir takes the first absolute candidate. $HOME may itself be an
// unexpanded "~" under some service managers.
func homeDir() (string, error) {
	var candidates []string
	if h, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, h)
	}
	if u, err := user.Current(); err == nil {
		candidates = append(candidates, u.HomeDir)
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if filepath.IsAbs(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("no absolute home directory (HOME=%q)", os.Getenv("HOME"))
}
