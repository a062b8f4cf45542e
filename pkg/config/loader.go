// Package config fills service config structs from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	// DefaultEnvFile is the dotenv file Load merges when ENV_FILE is unset.
	DefaultEnvFile = ".env"
	// EnvFileVar names a different dotenv file for Load.
	EnvFileVar = "ENV_FILE"
)

// Validator is implemented by configs with rules env tags cannot express.
type Validator interface {
	Validate() error
}

// Load fills cfg, a pointer to a struct with env tags, from the process
// environment merged over an optional dotenv file. The file is $ENV_FILE or
// .env in the working directory. If cfg implements Validator it is checked
// last.
//
//	type Config struct {
//	    Port  int `env:"BLOG_HTTP_PORT" envDefault:"8003"`
//	    Steps int `env:"XP_LEVEL_INCREMENT" envDefault:"20"`
//	}
func Load(cfg any) error {
	path := os.Getenv(EnvFileVar)
	if path == "" {
		path = DefaultEnvFile
	}
	return LoadFile(path, cfg)
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an
// error, so containers that configure through the environment alone need no
// file. Variables already set are never overridden by the file.
func LoadFile(path string, cfg any) error {
	if path != "" {
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
