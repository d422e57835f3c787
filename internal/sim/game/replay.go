package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"oraclecraft.ai/internal/oracle"
)

var ErrDigestMismatch = errors.New("digest mismatch")

// journalOracle answers with the judgments recorded in a journal, in order.
type journalOracle struct {
	judgments []oracle.Judgment
}

func (o *journalOracle) RequestJudgment(ctx context.Context, systemInstruction, userQuery string, schema *oracle.Schema) (oracle.Judgment, error) {
	if len(o.judgments) == 0 {
		return oracle.Judgment{}, errors.New("journal has no judgment left")
	}
	j := o.judgments[0]
	o.judgments = o.judgments[1:]
	return j, nil
}

// Replay re-applies journal entries to a fresh game built from cfg, feeding
// it the recorded judgments, and checks the digest after every entry.
// Entries must start at turn 1 and be in turn order. It returns the number
// of entries verified.
func Replay(ctx context.Context, cfg Config, entries []TurnLogEntry, logger *slog.Logger) (int, error) {
	jo := &journalOracle{}
	for _, e := range entries {
		if e.Judgment != nil && !e.FromCache {
			jo.judgments = append(jo.judgments, *e.Judgment)
		}
	}
	cfg.Welcome = []string{}
	g := New(cfg, jo, logger)

	for i, e := range entries {
		if _, err := g.Apply(ctx, e.Intent); err != nil {
			return i, fmt.Errorf("turn %d: apply %s: %w", e.Turn, e.Intent.Kind, err)
		}
		if got := g.Turn(); got != e.Turn {
			return i, fmt.Errorf("turn mismatch: got=%d want=%d", got, e.Turn)
		}
		if got := g.Digest(); got != e.Digest {
			return i, fmt.Errorf("%w at turn %d: got=%s want=%s", ErrDigestMismatch, e.Turn, got, e.Digest)
		}
	}
	return len(entries), nil
}
