package cmd

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds CLI defaults read from the environment. Explicit flags win.
type Env struct {
	InputDir string `env:"RESPOND_INPUT_DIR"`
	LogLevel string `env:"RESPOND_LOG_LEVEL"`
	Workers  int    `env:"RESPOND_WORKERS"`
}

// ParseEnv loads Env from environment variables.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
