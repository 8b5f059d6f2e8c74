package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Defaults seeds flag defaults. Flags always win over the environment.
type Defaults struct {
	Names       int           `env:"NAMES" envDefault:"10"`
	Length      int           `env:"LENGTH" envDefault:"5"`
	Method      string        `env:"METHOD" envDefault:"random"`
	Concurrency int           `env:"CONCURRENCY" envDefault:"5"`
	Birthday    string        `env:"BIRTHDAY" envDefault:"1999-04-20"`
	Endpoint    string        `env:"ENDPOINT" envDefault:"http://127.0.0.1:8080/api/validate"`
	Upstream    string        `env:"UPSTREAM" envDefault:"https://auth.roblox.com/v1/usernames/validate"`
	Listen      string        `env:"LISTEN" envDefault:"127.0.0.1:8080"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"15s"`
	SocksProxy  string        `env:"SOCKS_PROXY"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"warn"`
	LogFormat   string        `env:"LOG_FORMAT" envDefault:"text"`
	Output      string        `env:"OUTPUT" envDefault:"valid_usernames.txt"`
}

const envPrefix = "SNIPER_"

// LoadDefaults reads the optional dotenv files and then SNIPER_* variables.
// Missing dotenv files are not an error.
func LoadDefaults(dotenvFiles ...string) (Defaults, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Defaults{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var d Defaults
	if err := env.ParseWithOptions(&d, env.Options{Prefix: envPrefix}); err != nil {
		return Defaults{}, fmt.Errorf("parse environment: %w", err)
	}
	return d, nil
}
