// Command proxy serves the oracle proxy on its own, keeping the provider key
// off game hosts.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oraclecraft.ai/internal/config"
	"oraclecraft.ai/internal/logging"
	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/oracle/gemini"
	"oraclecraft.ai/internal/sim/tuning"
	"oraclecraft.ai/internal/transport/proxy"
)

func main() {
	var (
		addr       = flag.String("addr", ":8081", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (proxy and oracle sections)")
		logLevel   = flag.String("log_level", "", "debug|info|warn|error (default: ORACLECRAFT_LOG_LEVEL)")
	)
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("load env", "error", err)
		os.Exit(1)
	}
	level := env.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logger, closeLog, err := logging.New(os.Stderr, logging.Options{Level: level, File: env.LogFile, Component: "proxy"})
	if err != nil {
		slog.Error("init logging", "error", err)
		os.Exit(1)
	}
	defer closeLog()
	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		_ = closeLog()
		os.Exit(1)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fatal("load tuning", err)
		}
		tune = tuning.Defaults()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	model := env.GeminiModel
	if model == "" {
		model = tune.Oracle.Model
	}
	b, err := gemini.New(ctx, gemini.Config{APIKey: env.GeminiAPIKey, Model: model, BaseURL: env.GeminiBaseURL}, logger)
	if err != nil {
		fatal("gemini", err)
	}

	p := proxy.NewServer(oracle.WithAttemptTimeout(b, tune.Oracle.Timeout), proxy.Config{
		RatePerMinute: tune.Proxy.RatePerMinute,
		Burst:         tune.Proxy.Burst,
		MaxBodyBytes:  tune.Proxy.MaxBodyBytes,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc(proxy.Path, p.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", "addr", *addr, "model", b.Model(), "rate_per_minute", tune.Proxy.RatePerMinute)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fatal("ListenAndServe", err)
	}
}
