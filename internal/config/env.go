// Package config reads deployment settings from the environment. Game
// tuning lives in sim/tuning; this covers secrets and endpoints.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Env struct {
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL_NAME"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`
	// OracleURL points the server at a remote proxy instead of calling the
	// provider directly.
	OracleURL string `env:"ORACLECRAFT_ORACLE_URL"`
	LogLevel  string `env:"ORACLECRAFT_LOG_LEVEL" envDefault:"info"`
	LogFile   string `env:"ORACLECRAFT_LOG_FILE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	e.GeminiAPIKey = strings.TrimSpace(e.GeminiAPIKey)
	e.OracleURL = strings.TrimSpace(e.OracleURL)
	return e, nil
}

// OracleMode names the backend the settings select: "proxy" when OracleURL
// is set, "gemini" when a key is present, "" when neither is.
func (e Env) OracleMode() string {
	switch {
	case e.OracleURL != "":
		return "proxy"
	case e.GeminiAPIKey != "":
		return "gemini"
	default:
		return ""
	}
}
