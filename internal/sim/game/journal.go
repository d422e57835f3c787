package game

import "oraclecraft.ai/internal/oracle"

type IntentKind string

const (
	IntentToggleMaterial IntentKind = "TOGGLE_MATERIAL"
	IntentCraft          IntentKind = "CRAFT"
	IntentExplore        IntentKind = "EXPLORE"
	IntentCommand        IntentKind = "COMMAND"
	IntentExecute        IntentKind = "EXECUTE"
)

// Intent is a player action in transport- and journal-friendly form.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	Item       string     `json:"item,omitempty"`
	Materials  []string   `json:"materials,omitempty"`
	Action     string     `json:"action,omitempty"`
	Location   string     `json:"location,omitempty"`
	AgentID    string     `json:"agent_id,omitempty"`
	RecipeID   string     `json:"recipe_id,omitempty"`
	Persistent bool       `json:"persistent,omitempty"`
}

// TurnLogEntry records one turn-consuming action: enough to replay it
// against a fresh game and compare digests.
type TurnLogEntry struct {
	Turn      uint64           `json:"turn"`
	Intent    Intent           `json:"intent"`
	Judgment  *oracle.Judgment `json:"judgment,omitempty"`
	FromCache bool             `json:"from_cache,omitempty"`
	Events    []Event          `json:"events,omitempty"`
	Digest    string           `json:"digest"`
}

type TurnRecorder interface {
	RecordTurn(entry TurnLogEntry) error
}

// Recorders fans an entry out to several recorders, returning the first error.
type Recorders []TurnRecorder

func (rs Recorders) RecordTurn(entry TurnLogEntry) error {
	var first error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.RecordTurn(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// opState tracks the operation currently holding the engine.
type opState struct {
	intent    Intent
	judgment  *oracle.Judgment
	fromCache bool
	advanced  bool
	events    []Event
}

func (g *Game) beginOp(in Intent) {
	g.op = &opState{intent: in}
}

// endOp publishes queued events and, when the op consumed a turn, records it.
func (g *Game) endOp() {
	evs := g.flush()
	op := g.op
	g.op = nil
	if op == nil {
		return
	}
	op.events = append(op.events, evs...)
	if !op.advanced || g.recorder == nil {
		return
	}
	entry := TurnLogEntry{
		Turn:      g.turn,
		Intent:    op.intent,
		Judgment:  op.judgment,
		FromCache: op.fromCache,
		Events:    op.events,
		Digest:    g.digestLocked(),
	}
	if err := g.recorder.RecordTurn(entry); err != nil {
		g.log.Warn("record turn", "turn", g.turn, "error", err)
	}
}

// suspend flushes events before the lock is released mid-op.
func (g *Game) suspend() {
	evs := g.flush()
	if g.op != nil {
		g.op.events = append(g.op.events, evs...)
	}
}
