// Package config fills env-tagged structs from the process environment and
// an optional dotenv file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// DotEnvFileVar names the variable that overrides the default .env path.
const DotEnvFileVar = "DOTENV_FILE"

// Load merges the dotenv file into the environment, then parses cfg with
// caarlos0/env tags. Variables already set in the process win over the file,
// and a missing file is not an error. When required variables are unset the
// error names all of them.
func Load(cfg any) error {
	if err := loadDotEnv(); err != nil {
		return err
	}
	if err := env.Parse(cfg); err != nil {
		if keys := missingKeys(err); len(keys) > 0 {
			return fmt.Errorf("parse config: missing %s: %w", strings.Join(keys, ", "), err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func loadDotEnv() error {
	path := os.Getenv(DotEnvFileVar)
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	switch {
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("load %s: %w", path, err)
	}
}

func missingKeys(err error) []string {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return nil
	}
	var keys []string
	for _, e := range agg.Errors {
		var unset env.EnvVarIsNotSetError
		var empty env.EmptyEnvVarError
		switch {
		case errors.As(e, &unset):
			keys = append(keys, unset.Key)
		case errors.As(e, &empty):
			keys = append(keys, empty.Key)
		}
	}
	return keys
}
