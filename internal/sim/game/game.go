// Package game is the turn/state engine: it owns inventory, recipes, agents
// and the judgment cache, applies oracle judgments and resolves agent turns.
package game

import (
	"log/slog"
	"sort"
	"sync"

	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/sim/ledger"
	"oraclecraft.ai/internal/sim/model"
)

type Config struct {
	StarterItems map[string]int
	// LogRetention bounds the in-memory event log; 0 keeps everything.
	LogRetention int
	Welcome      []string
}

var defaultWelcome = []string{
	"Welcome! Nothing in this world has been defined yet.",
	"Craft and explore to open up the world.",
}

// Game is one independent game instance. All methods are safe for concurrent
// use; state changes are serialized and at most one oracle request runs at a
// time.
type Game struct {
	cfg    Config
	oracle oracle.Oracle
	log    *slog.Logger

	mu sync.Mutex

	inventory ledger.Inventory
	recipes   map[string]model.Recipe
	agents    map[string]*model.Agent
	cache     map[string]CacheEntry
	selection []string

	turn          uint64
	nextAgentNum  uint64
	nextRecipeNum uint64
	loading       bool

	outbox       []Event
	events       []Event
	nextEventSeq uint64
	sinks        []EventSink

	recorder TurnRecorder
	op       *opState
}

func New(cfg Config, o oracle.Oracle, logger *slog.Logger) *Game {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Game{
		cfg:       cfg,
		oracle:    o,
		log:       logger,
		inventory: ledger.New(),
		recipes:   map[string]model.Recipe{},
		agents:    map[string]*model.Agent{},
		cache:     map[string]CacheEntry{},
	}
	for item, n := range cfg.StarterItems {
		g.inventory.Credit(item, float64(n))
	}
	welcome := cfg.Welcome
	if welcome == nil {
		welcome = defaultWelcome
	}
	g.mu.Lock()
	for _, line := range welcome {
		g.emit(CatSystem, EvWelcome, line)
	}
	g.flush()
	g.mu.Unlock()
	return g
}

func (g *Game) AddSink(s EventSink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sinks = append(g.sinks, s)
}

func (g *Game) SetTurnRecorder(r TurnRecorder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recorder = r
}

func (g *Game) Turn() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turn
}

func (g *Game) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

func (g *Game) Recipe(id string) (model.Recipe, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.recipes[id]
	return r.Clone(), ok
}

func (g *Game) Agent(id string) (model.Agent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := g.agents[id]
	if a == nil {
		return model.Agent{}, false
	}
	return *a, true
}

// agentOrder returns agent ids in ascending creation order.
func (g *Game) agentOrder() []string {
	ids := make([]string, 0, len(g.agents))
	for id := range g.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return g.agents[ids[i]].Seq < g.agents[ids[j]].Seq })
	return ids
}

func (g *Game) spawnAgent(name string) *model.Agent {
	g.nextAgentNum++
	a := model.NewAgent(g.nextAgentNum, name)
	g.agents[a.ID] = &a
	return &a
}

func (g *Game) allocRecipeSeq() uint64 {
	g.nextRecipeNum++
	return g.nextRecipeNum
}
