package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"oraclecraft.ai/internal/config"
	"oraclecraft.ai/internal/logging"
	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/persistence/indexdb"
	persistlog "oraclecraft.ai/internal/persistence/log"
	"oraclecraft.ai/internal/sim/game"
	"oraclecraft.ai/internal/sim/tuning"
)

func main() {
	var (
		addr           = flag.String("addr", ":8080", "http listen address")
		configDir      = flag.String("configs", "./configs", "config directory")
		tuningPath     = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir        = flag.String("data", "./data", "runtime data directory")
		disableDB      = flag.Bool("disable_db", false, "disable the sqlite turn/event index")
		disableJournal = flag.Bool("disable_journal", false, "disable the zstd turn journal")
		serveProxy     = flag.Bool("serve_proxy", true, "serve the oracle proxy route when calling the provider directly")
		logLevel       = flag.String("log_level", "", "debug|info|warn|error (default: ORACLECRAFT_LOG_LEVEL)")
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
	logger, closeLog, err := logging.New(os.Stderr, logging.Options{Level: level, File: env.LogFile, Component: "server"})
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

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fatal("load tuning", err)
		}
		logger.Info("tuning not found; using defaults", "path", tp)
		tune = tuning.Defaults()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backends, err := openOracleBackends(ctx, env, tune, logger)
	if err != nil {
		fatal("oracle", err)
	}
	client := oracle.NewClient(backends.game, tune.Oracle.Retry, logger.With("component", "oracle"))

	g := game.New(game.Config{
		StarterItems: tune.StarterItems,
		LogRetention: tune.LogRetention,
		Welcome:      tune.Welcome,
	}, client, logger.With("component", "game"))

	var recorders game.Recorders
	if !*disableJournal {
		jl := persistlog.NewTurnLogger(*dataDir)
		defer jl.Close()
		recorders = append(recorders, jl)
	}
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "oraclecraft.sqlite"))
		if err != nil {
			fatal("open index", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Warn("index: upsert tuning", "error", err)
		}
		recorders = append(recorders, idx)
		g.AddSink(idx)
	}
	if len(recorders) > 0 {
		g.SetTurnRecorder(recorders)
	}

	deps := routeDeps{game: g, tune: tune, index: idx, logger: logger}
	if *serveProxy {
		deps.provider = backends.provider
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", "addr", *addr, "oracle", backends.mode, "proxy_route", deps.provider != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fatal("ListenAndServe", err)
	}
}
