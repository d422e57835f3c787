// Command replay re-applies a turn journal to a fresh game and verifies the
// state digest after every turn.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	persistlog "oraclecraft.ai/internal/persistence/log"
	"oraclecraft.ai/internal/sim/game"
	"oraclecraft.ai/internal/sim/tuning"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory containing turns/")
		file       = flag.String("file", "", "replay a single turns-*.jsonl.zst file instead of the whole journal")
		tuningPath = flag.String("tuning", "", "tuning.yaml the journal was recorded with (default: built-in defaults)")
		toTurn     = flag.Uint64("to_turn", 0, "stop after this turn (inclusive, optional)")
		verbose    = flag.Bool("v", false, "log engine warnings")
	)
	flag.Parse()

	if err := run(os.Stdout, *dataDir, *file, *tuningPath, *toTurn, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

func run(out io.Writer, dataDir, file, tuningPath string, toTurn uint64, verbose bool) error {
	tune := tuning.Defaults()
	if tuningPath != "" {
		t, err := tuning.Load(tuningPath)
		if err != nil {
			return fmt.Errorf("load tuning: %w", err)
		}
		tune = t
	}

	var (
		entries []game.TurnLogEntry
		err     error
	)
	if file != "" {
		entries, err = persistlog.ReadTurnFile(file)
	} else {
		entries, err = persistlog.ReadTurns(dataDir)
	}
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no journal entries found")
	}
	if entries[0].Turn != 1 {
		return fmt.Errorf("journal starts at turn %d; replay needs the full history from turn 1", entries[0].Turn)
	}
	if toTurn != 0 {
		n := 0
		for n < len(entries) && entries[n].Turn <= toTurn {
			n++
		}
		entries = entries[:n]
	}

	level := slog.LevelError
	if verbose {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	checked, err := game.Replay(context.Background(), game.Config{
		StarterItems: tune.StarterItems,
		LogRetention: tune.LogRetention,
	}, entries, logger)
	if err != nil {
		return fmt.Errorf("after %d verified turns: %w", checked, err)
	}
	last := entries[len(entries)-1]
	fmt.Fprintf(out, "replay ok: checked=%d turns (last turn=%d digest=%s)\n", checked, last.Turn, last.Digest)
	return nil
}
