package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFiles are tried in order; earlier files win because godotenv never overrides.
var DefaultEnvFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads any of files that exist into the process environment.
// Variables already set in the environment are left alone. Missing files are skipped.
func LoadEnvFiles(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	var loaded []string
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}
