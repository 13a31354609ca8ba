// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file holds one secret: the file name is the key and the trimmed
// contents are the value. Environment variables take precedence over files.
//
// Supported key files: openreview-email, openreview-password.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Key files and their environment overrides.
const (
	EmailKey    = "openreview-email"
	PasswordKey = "openreview-password"

	EmailEnv    = "OPENREVIEW_EMAIL"
	PasswordEnv = "OPENREVIEW_PASSWORD"
)

// DefaultDir is the secrets directory used when none is configured.
const DefaultDir = ".secrets/"

// Store holds loaded secrets keyed by file name.
type Store map[string]string

// Load reads all files in dir. A missing directory is not an error and
// yields an empty Store. Unreadable files are logged and skipped.
func Load(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Store)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Keys returns the loaded key names, sorted. Values are never listed.
func (s Store) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Credentials returns the OpenReview pair, preferring the environment over
// the key files. Either half may be empty.
func (s Store) Credentials() types.Credentials {
	return types.Credentials{
		Email:    firstNonEmpty(os.Getenv(EmailEnv), s[EmailKey]),
		Password: firstNonEmpty(os.Getenv(PasswordEnv), s[PasswordKey]),
	}
}

// LoadCredentials is Load followed by Credentials.
func LoadCredentials(dir string) (types.Credentials, error) {
	s, err := Load(dir)
	if err != nil {
		return types.Credentials{}, err
	}
	return s.Credentials(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
