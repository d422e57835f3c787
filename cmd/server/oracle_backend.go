package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"oraclecraft.ai/internal/config"
	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/oracle/gemini"
	"oraclecraft.ai/internal/oracle/proxyclient"
	"oraclecraft.ai/internal/sim/tuning"
)

// oracleBackends holds the backend the game uses and, when the server talks
// to the provider itself, the provider backend the proxy route forwards to.
type oracleBackends struct {
	game     oracle.Backend
	provider oracle.Backend
	mode     string
}

func openOracleBackends(ctx context.Context, env config.Env, tune tuning.Tuning, logger *slog.Logger) (oracleBackends, error) {
	switch env.OracleMode() {
	case "proxy":
		b := proxyclient.New(env.OracleURL, &http.Client{})
		return oracleBackends{
			game: oracle.WithAttemptTimeout(b, tune.Oracle.Timeout),
			mode: "proxy",
		}, nil
	case "gemini":
		model := env.GeminiModel
		if model == "" {
			model = tune.Oracle.Model
		}
		b, err := gemini.New(ctx, gemini.Config{
			APIKey:  env.GeminiAPIKey,
			Model:   model,
			BaseURL: env.GeminiBaseURL,
		}, logger.With("component", "gemini"))
		if err != nil {
			return oracleBackends{}, err
		}
		timed := oracle.WithAttemptTimeout(b, tune.Oracle.Timeout)
		return oracleBackends{game: timed, provider: timed, mode: "gemini"}, nil
	default:
		return oracleBackends{}, errors.New("no oracle configured: set GEMINI_API_KEY or ORACLECRAFT_ORACLE_URL")
	}
}
