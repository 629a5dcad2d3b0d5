package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const pepperBytes = 32

var (
	pepperMu   sync.Mutex
	pepper     string
	pepperPath = "pepper"
)

// SetPepperPath points password hashing at a pepper file. Any pepper already
// loaded is discarded so the next hash reads the new file.
func SetPepperPath(path string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	pepperPath = path
	pepper = ""
}

// LoadPepper returns the process pepper, reading it from disk on first use.
// A missing file is created with a fresh random pepper.
func LoadPepper() (string, error) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper != "" {
		return pepper, nil
	}

	p, err := readOrCreatePepper(filepath.Clean(pepperPath))
	if err != nil {
		return "", fmt.Errorf("cryptox: pepper %s: %w", pepperPath, err)
	}
	pepper = p
	return pepper, nil
}

func readOrCreatePepper(path string) (string, error) {
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		p := strings.TrimSpace(string(b))
		if p == "" {
			return "", errors.New("file is empty")
		}
		return p, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}

	raw := make([]byte, pepperBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(raw)

	if err := os.WriteFile(path, []byte(p), 0o600); err != nil {
		return "", err
	}
	return p, nil
}
