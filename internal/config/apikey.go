package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads the .env file into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// APIKey returns the rewriter key from the environment.
func (c *Config) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.Rewriter.APIKeyEnv))
}

// SaveAPIKey stores key in the .env file under name, keeping other entries,
// and exports it to the running process.
func SaveAPIKey(path, name, key string) error {
	env, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if env == nil {
		env = map[string]string{}
	}
	env[name] = key
	if err := godotenv.Write(env, path); err != nil {
		return err
	}
	return os.Setenv(name, key)
}
