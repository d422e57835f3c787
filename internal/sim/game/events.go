package game

// Category tags an event for presentation.
type Category string

const (
	CatSystem    Category = "system"
	CatSuccess   Category = "success"
	CatError     Category = "error"
	CatTurn      Category = "system-turn"
	CatAI        Category = "ai"
	CatAICommand Category = "ai-command"
)

type EventType string

const (
	EvWelcome          EventType = "WELCOME"
	EvCacheHit         EventType = "CACHE_HIT"
	EvOracleRetry      EventType = "ORACLE_RETRY"
	EvOracleFailed     EventType = "ORACLE_FAILED"
	EvJudgmentFailed   EventType = "JUDGMENT_FAILED"
	EvJudgmentApplied  EventType = "JUDGMENT_APPLIED"
	EvShortage         EventType = "SHORTAGE"
	EvProcessingError  EventType = "PROCESSING_ERROR"
	EvAgentSpawned     EventType = "AGENT_SPAWNED"
	EvRecipeDiscovered EventType = "RECIPE_DISCOVERED"
	EvRecipeExecuted   EventType = "RECIPE_EXECUTED"
	EvCommandIssued    EventType = "COMMAND_ISSUED"

	EvTurnEnd      EventType = "TURN_END"
	EvTurnStart    EventType = "TURN_START"
	EvAITurnStart  EventType = "AI_TURN_START"
	EvAITurnEnd    EventType = "AI_TURN_END"
	EvAgentsIdle   EventType = "AGENTS_IDLE"
	EvAgentActed   EventType = "AGENT_ACTED"
	EvAgentShort   EventType = "AGENT_SHORTAGE"
	EvAgentStopped EventType = "AGENT_STOPPED"
	EvAgentCommand EventType = "AGENT_COMMAND"
	EvAgentError   EventType = "AGENT_ERROR"
)

type Event struct {
	Seq      uint64    `json:"seq"`
	Turn     uint64    `json:"turn"`
	Type     EventType `json:"type"`
	Category Category  `json:"category"`
	Text     string    `json:"text"`
	AgentID  string    `json:"agent_id,omitempty"`
	RecipeID string    `json:"recipe_id,omitempty"`
}

// EventSink receives events after each operation. Implementations must not
// block and must not call back into the Game.
type EventSink interface {
	OnEvent(ev Event)
}

type EventSinkFunc func(ev Event)

func (f EventSinkFunc) OnEvent(ev Event) { f(ev) }

// emit queues an event in the outbox; flush publishes it.
func (g *Game) emit(cat Category, typ EventType, text string, refs ...string) {
	ev := Event{Turn: g.turn, Type: typ, Category: cat, Text: text}
	if len(refs) > 0 {
		ev.AgentID = refs[0]
	}
	if len(refs) > 1 {
		ev.RecipeID = refs[1]
	}
	g.outbox = append(g.outbox, ev)
}

// flush assigns sequence numbers, appends to the retained log and notifies
// sinks. Must be called with g.mu held, before every unlock.
func (g *Game) flush() []Event {
	if len(g.outbox) == 0 {
		return nil
	}
	out := make([]Event, 0, len(g.outbox))
	for _, ev := range g.outbox {
		g.nextEventSeq++
		ev.Seq = g.nextEventSeq
		out = append(out, ev)
	}
	g.outbox = g.outbox[:0]

	g.events = append(g.events, out...)
	if n := g.cfg.LogRetention; n > 0 && len(g.events) > n {
		g.events = append([]Event(nil), g.events[len(g.events)-n:]...)
	}
	for _, ev := range out {
		for _, s := range g.sinks {
			s.OnEvent(ev)
		}
	}
	return out
}

// Events returns retained events with Seq > after.
func (g *Game) Events(after uint64) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Event, 0)
	for _, ev := range g.events {
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	return out
}
