package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/oracle/oracletest"
	"oraclecraft.ai/internal/sim/model"
)

func newTestGame(t *testing.T, inv map[string]int, o oracle.Oracle) *Game {
	t.Helper()
	return New(Config{StarterItems: inv, Welcome: []string{}}, o, nil)
}

func spearJudgment() oracle.Judgment {
	return oracle.Judgment{
		Success:     true,
		ItemName:    "stone spear",
		Description: "You lash the stone to the wood.",
		Inputs:      []oracle.Amount{{Item: "wood", Amount: 1}, {Item: "sharp stone", Amount: 1}},
		Outputs:     []oracle.Amount{{Item: "stone spear", Amount: 1}},
	}
}

// advance runs a bare turn, as if a player action had just completed.
func advance(g *Game) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.beginOp(Intent{})
	g.advanceTurn()
	g.endOp()
}

func eventsOfType(g *Game, typ EventType) []Event {
	var out []Event
	for _, ev := range g.Events(0) {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// addRecipe registers r directly, allocating its id.
func addRecipe(g *Game, build func(seq uint64) model.Recipe) model.Recipe {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := build(g.allocRecipeSeq())
	g.recipes[r.ID] = r
	return r
}

func addAgent(g *Game, name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.spawnAgent(name).ID
}

func assign(g *Game, agentID, recipeID string, persistent bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.agents[agentID].Assign(recipeID, persistent)
}

func TestCraft_SpearScenario(t *testing.T) {
	o := oracletest.New(spearJudgment())
	g := newTestGame(t, map[string]int{"wood": 10, "sharp stone": 5}, o)

	if err := g.SelectMaterials([]string{"wood", "sharp stone"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	out, err := g.Craft(context.Background(), "make a spear")
	if err != nil {
		t.Fatalf("craft: %v", err)
	}
	if out.Status != StatusApplied || !out.TurnConsumed || out.Turn != 1 || out.RecipeID != "R-001" {
		t.Fatalf("outcome=%+v", out)
	}

	s := g.Snapshot()
	want := map[string]int{"wood": 9, "sharp stone": 4, "stone spear": 1}
	if len(s.Inventory) != len(want) {
		t.Fatalf("inventory=%v", s.Inventory)
	}
	for _, st := range s.Inventory {
		if want[st.Item] != st.Amount {
			t.Fatalf("inventory[%s]=%d want %d", st.Item, st.Amount, want[st.Item])
		}
	}
	if len(s.Recipes) != 1 || s.Recipes[0].Name != "stone spear" || s.Recipes[0].Kind != model.KindCraft {
		t.Fatalf("recipes=%+v", s.Recipes)
	}
	if s.Recipes[0].Description != "woodx1+sharp stonex1 => stone spearx1" {
		t.Fatalf("description=%q", s.Recipes[0].Description)
	}
	if len(s.Selection) != 0 {
		t.Fatalf("selection not cleared: %v", s.Selection)
	}
	if s.Loading {
		t.Fatalf("loading still set")
	}
	calls := o.Calls()
	if len(calls) != 1 || calls[0].Schema != "craft" {
		t.Fatalf("calls=%+v", calls)
	}
}

func TestCraft_CacheReplaysSameRecipe(t *testing.T) {
	o := oracletest.New(spearJudgment())
	g := newTestGame(t, map[string]int{"wood": 10, "sharp stone": 5}, o)
	ctx := context.Background()

	g.SelectMaterials([]string{"wood", "sharp stone"})
	first, err := g.Craft(ctx, "make a spear")
	if err != nil {
		t.Fatalf("first craft: %v", err)
	}
	// Selection order must not matter for the cache key.
	g.SelectMaterials([]string{"sharp stone", "wood"})
	second, err := g.Craft(ctx, "make a spear")
	if err != nil {
		t.Fatalf("second craft: %v", err)
	}
	if !second.FromCache || second.RecipeID != first.RecipeID {
		t.Fatalf("second=%+v first=%+v", second, first)
	}
	if len(o.Calls()) != 1 {
		t.Fatalf("oracle called %d times", len(o.Calls()))
	}
	s := g.Snapshot()
	if len(s.Recipes) != 1 || s.Turn != 2 {
		t.Fatalf("recipes=%d turn=%d", len(s.Recipes), s.Turn)
	}
	if len(eventsOfType(g, EvCacheHit)) != 1 {
		t.Fatalf("expected one cache-hit event")
	}
	if got := len(eventsOfType(g, EvRecipeDiscovered)); got != 1 {
		t.Fatalf("recipe discovered %d times", got)
	}
}

func TestCraft_ValidatesInput(t *testing.T) {
	g := newTestGame(t, map[string]int{"wood": 1}, oracletest.New())
	if _, err := g.Craft(context.Background(), "anything"); !errors.Is(err, ErrBadInput) {
		t.Fatalf("craft without selection: %v", err)
	}
	if _, err := g.ToggleMaterial("gold"); !errors.Is(err, ErrBadInput) {
		t.Fatalf("toggle missing item: %v", err)
	}
	if on, err := g.ToggleMaterial("wood"); err != nil || !on {
		t.Fatalf("toggle wood: %v %v", on, err)
	}
	if _, err := g.Craft(context.Background(), "   "); !errors.Is(err, ErrBadInput) {
		t.Fatalf("craft without action: %v", err)
	}
	if sel := g.SelectedMaterials(); len(sel) != 1 {
		t.Fatalf("selection should survive a rejected request: %v", sel)
	}
	if on, _ := g.ToggleMaterial("wood"); on {
		t.Fatalf("second toggle should deselect")
	}
	if _, err := g.Explore(context.Background(), ""); !errors.Is(err, ErrBadInput) {
		t.Fatalf("explore without location: %v", err)
	}
	if g.Turn() != 0 {
		t.Fatalf("turn=%d", g.Turn())
	}
}

func TestExplore_FailureConsumesTurn(t *testing.T) {
	o := oracletest.New(oracle.Judgment{Success: false, Description: "too dangerous, found nothing"})
	g := newTestGame(t, map[string]int{"wood": 3}, o)

	out, err := g.Explore(context.Background(), "volcano")
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if out.Status != StatusRejected || !out.TurnConsumed || g.Turn() != 1 {
		t.Fatalf("outcome=%+v turn=%d", out, g.Turn())
	}
	s := g.Snapshot()
	if len(s.Inventory) != 1 || s.Inventory[0].Amount != 3 || len(s.Recipes) != 0 || len(s.Cache) != 0 {
		t.Fatalf("state changed: %+v", s)
	}
	evs := eventsOfType(g, EvJudgmentFailed)
	if len(evs) != 1 || evs[0].Text != "too dangerous, found nothing" || evs[0].Category != CatError {
		t.Fatalf("failure events=%+v", evs)
	}
}

func TestExplore_DiscoversRecipe(t *testing.T) {
	o := oracletest.New(oracle.Judgment{
		Success:     true,
		Description: "Fallen branches everywhere.",
		Outputs:     []oracle.Amount{{Item: "log", Amount: 2.4}, {Item: "nothing", Amount: 0.2}},
	})
	g := newTestGame(t, nil, o)
	out, err := g.Explore(context.Background(), "forest")
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	r, ok := g.Recipe(out.RecipeID)
	if !ok || r.Kind != model.KindExplore || r.Name != "explore: forest" {
		t.Fatalf("recipe=%+v ok=%v", r, ok)
	}
	if len(r.Outputs) != 1 || r.Outputs[0] != (model.ItemAmount{Item: "log", Amount: 2}) {
		t.Fatalf("outputs=%+v", r.Outputs)
	}
	if s := g.Snapshot(); len(s.Cache) != 1 || s.Cache[0].Key != "explore:forest" {
		t.Fatalf("cache=%+v", s.Cache)
	}
}

func TestOracleFailure_NoTurn(t *testing.T) {
	o := oracletest.New().Fail(errors.New("unavailable"))
	g := newTestGame(t, map[string]int{"wood": 2}, o)
	g.SelectMaterials([]string{"wood"})

	_, err := g.Craft(context.Background(), "whittle")
	if !errors.Is(err, ErrOracle) {
		t.Fatalf("err=%v", err)
	}
	if g.Turn() != 0 || g.Loading() {
		t.Fatalf("turn=%d loading=%v", g.Turn(), g.Loading())
	}
	if len(g.SelectedMaterials()) != 0 {
		t.Fatalf("selection should be cleared once dispatched")
	}
	if len(eventsOfType(g, EvOracleFailed)) != 1 {
		t.Fatalf("missing oracle failure event")
	}
}

func TestOracleRetry_EmitsNotice(t *testing.T) {
	calls := 0
	backend := oracle.BackendFunc(func(ctx context.Context, req oracle.Request) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("503")
		}
		return `{"success":true,"description":"found a rock","outputs":[{"item":"rock","amount":1}]}`, nil
	})
	client := oracle.NewClient(backend, oracle.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, nil)
	g := newTestGame(t, nil, client)

	if _, err := g.Explore(context.Background(), "quarry"); err != nil {
		t.Fatalf("explore: %v", err)
	}
	if len(eventsOfType(g, EvOracleRetry)) != 1 {
		t.Fatalf("expected one retry notice, events=%+v", g.Events(0))
	}
	s := g.Snapshot()
	if len(s.Inventory) != 1 || s.Inventory[0].Item != "rock" {
		t.Fatalf("inventory=%+v", s.Inventory)
	}
}

func TestBusy_RejectsSecondIntent(t *testing.T) {
	o := oracletest.New(oracle.Judgment{Success: false, Description: "nothing"})
	o.Block = make(chan struct{})
	g := newTestGame(t, map[string]int{"wood": 1}, o)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := g.Explore(context.Background(), "cave"); err != nil {
			t.Errorf("explore: %v", err)
		}
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !g.Loading() {
		if time.Now().After(deadline) {
			t.Fatalf("never started loading")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := g.Explore(context.Background(), "lake"); !errors.Is(err, ErrBusy) {
		t.Fatalf("explore while loading: %v", err)
	}
	if _, err := g.ToggleMaterial("wood"); !errors.Is(err, ErrBusy) {
		t.Fatalf("toggle while loading: %v", err)
	}
	close(o.Block)
	wg.Wait()

	if g.Turn() != 1 || g.Loading() {
		t.Fatalf("turn=%d loading=%v", g.Turn(), g.Loading())
	}
	if n := len(o.Calls()); n != 1 {
		t.Fatalf("oracle calls=%d", n)
	}
}

func TestShortage_NoTurnNoChange(t *testing.T) {
	j := spearJudgment()
	j.Inputs = []oracle.Amount{{Item: "wood", Amount: 5}}
	g := newTestGame(t, map[string]int{"wood": 2, "sharp stone": 1}, oracletest.New(j))
	g.SelectMaterials([]string{"wood"})
	before := g.Digest()

	out, err := g.Craft(context.Background(), "make a spear")
	if !errors.Is(err, ErrShortage) || out.TurnConsumed {
		t.Fatalf("out=%+v err=%v", out, err)
	}
	if g.Digest() != before || g.Loading() {
		t.Fatalf("state changed on shortage")
	}
	if len(eventsOfType(g, EvShortage)) != 1 {
		t.Fatalf("missing shortage event")
	}
}

func TestMalformedJudgment_RollsBackAndConsumesTurn(t *testing.T) {
	j := spearJudgment()
	j.Outputs = append(j.Outputs, oracle.Amount{Item: "  ", Amount: 1})
	g := newTestGame(t, map[string]int{"wood": 2, "sharp stone": 1}, oracletest.New(j))
	g.SelectMaterials([]string{"wood", "sharp stone"})

	out, err := g.Craft(context.Background(), "make a spear")
	if err != nil {
		t.Fatalf("craft: %v", err)
	}
	if out.Status != StatusMalformed || !out.TurnConsumed || g.Turn() != 1 {
		t.Fatalf("out=%+v turn=%d", out, g.Turn())
	}
	s := g.Snapshot()
	if len(s.Recipes) != 0 || len(s.Cache) != 0 || len(s.Inventory) != 2 {
		t.Fatalf("partial state left behind: %+v", s)
	}
	if len(eventsOfType(g, EvProcessingError)) != 1 {
		t.Fatalf("missing processing error event")
	}
}

func TestRollback_RestoresSavepoint(t *testing.T) {
	g := newTestGame(t, map[string]int{"wood": 2}, nil)
	addAgent(g, "old bot")
	before := g.Digest()

	g.mu.Lock()
	sp := g.save()
	g.inventory.Credit("gold", 3)
	g.inventory.Consume([]model.ItemAmount{{Item: "wood", Amount: 2}})
	g.spawnAgent("new bot")
	r := model.NewExploreRecipe(g.allocRecipeSeq(), "explore: x", "", nil)
	g.recipes[r.ID] = r
	g.cache["explore:x"] = CacheEntry{RecipeID: r.ID, Kind: model.KindExplore}
	g.emit(CatSystem, EvRecipeDiscovered, "discarded")
	g.rollback(sp)
	outbox := len(g.outbox)
	g.mu.Unlock()

	if g.Digest() != before {
		t.Fatalf("digest changed after rollback")
	}
	if outbox != 0 {
		t.Fatalf("outbox=%d", outbox)
	}
}

func TestAutonomousCraft_SpawnsAgent(t *testing.T) {
	j := oracle.Judgment{
		Success:      true,
		ItemName:     "clockwork helper",
		Description:  "It whirs to life.",
		Inputs:       []oracle.Amount{{Item: "mysterious core", Amount: 1}},
		Outputs:      []oracle.Amount{{Item: "clockwork helper", Amount: 1}},
		IsAutonomous: true,
	}
	g := newTestGame(t, map[string]int{"mysterious core": 2}, oracletest.New(j))
	g.SelectMaterials([]string{"mysterious core"})
	out, err := g.Craft(context.Background(), "awaken")
	if err != nil {
		t.Fatalf("craft: %v", err)
	}
	a, ok := g.Agent("AI-001")
	if !ok || a.Name != "clockwork helper" || !a.Idle() || a.IsPersistent {
		t.Fatalf("agent=%+v ok=%v", a, ok)
	}
	r, _ := g.Recipe(out.RecipeID)
	if name, ok := r.SpawnsAgent(); !ok || name != "clockwork helper" {
		t.Fatalf("recipe should spawn: %+v", r)
	}
	// The new agent is idle, so the turn reports everyone standing by.
	if len(eventsOfType(g, EvAgentsIdle)) != 1 {
		t.Fatalf("expected idle notice")
	}
}

func TestAgentOrder_Deterministic(t *testing.T) {
	g := newTestGame(t, nil, nil)
	r := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewExploreRecipe(seq, "explore: beach", "", []model.ItemAmount{{Item: "shell", Amount: 1}})
	})
	var ids []string
	for i := 0; i < 11; i++ {
		ids = append(ids, addAgent(g, "bot"))
	}
	// Assign out of order; AI-010 and AI-011 must still follow AI-002.
	for _, i := range []int{10, 1, 9} {
		assign(g, ids[i], r.ID, false)
	}
	advance(g)

	acted := eventsOfType(g, EvAgentActed)
	want := []string{"AI-002", "AI-010", "AI-011"}
	if len(acted) != len(want) {
		t.Fatalf("acted=%+v", acted)
	}
	for i, ev := range acted {
		if ev.AgentID != want[i] {
			t.Fatalf("acted[%d]=%s want %s", i, ev.AgentID, want[i])
		}
	}
	for _, id := range want {
		if a, _ := g.Agent(id); !a.Idle() {
			t.Fatalf("%s should be idle after a single-shot run", id)
		}
	}
}

func TestPersistentAgent_StopsOnShortage(t *testing.T) {
	g := newTestGame(t, map[string]int{"ore": 2}, nil)
	r := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewCraftRecipe(seq, "ingot", "", []model.ItemAmount{{Item: "ore", Amount: 1}}, []model.ItemAmount{{Item: "ingot", Amount: 1}}, model.CraftSpec{})
	})
	id := addAgent(g, "smelter")
	assign(g, id, r.ID, true)

	advance(g)
	advance(g)
	if a, _ := g.Agent(id); a.AssignedRecipeID != r.ID || !a.IsPersistent {
		t.Fatalf("agent should still be assigned: %+v", a)
	}
	advance(g)
	a, ok := g.Agent(id)
	if !ok || !a.Idle() || a.IsPersistent {
		t.Fatalf("agent should have stopped: %+v ok=%v", a, ok)
	}
	if len(eventsOfType(g, EvAgentStopped)) != 1 || len(eventsOfType(g, EvAgentShort)) != 1 {
		t.Fatalf("missing stop events")
	}
	s := g.Snapshot()
	if len(s.Inventory) != 1 || s.Inventory[0] != (model.ItemAmount{Item: "ingot", Amount: 2}) {
		t.Fatalf("inventory=%+v", s.Inventory)
	}
}

func TestNonPersistentAgent_ClearsOnShortage(t *testing.T) {
	g := newTestGame(t, nil, nil)
	r := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewCraftRecipe(seq, "ingot", "", []model.ItemAmount{{Item: "ore", Amount: 1}}, []model.ItemAmount{{Item: "ingot", Amount: 1}}, model.CraftSpec{})
	})
	id := addAgent(g, "smelter")
	assign(g, id, r.ID, false)
	advance(g)
	if a, _ := g.Agent(id); !a.Idle() {
		t.Fatalf("agent should be idle: %+v", a)
	}
	if len(eventsOfType(g, EvAgentStopped)) != 0 {
		t.Fatalf("stop event is for persistent orders only")
	}
}

func TestCommand_PersistentOverThreeTurns(t *testing.T) {
	g := newTestGame(t, nil, oracletest.New())
	id := addAgent(g, "lumberjack")
	addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewExploreRecipe(seq, "explore: meadow", "", []model.ItemAmount{{Item: "flower", Amount: 1}})
	})
	grove := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewExploreRecipe(seq, "explore: grove", "", []model.ItemAmount{{Item: "wood", Amount: 2}})
	})
	if grove.ID != "R-002" {
		t.Fatalf("grove id=%s", grove.ID)
	}

	out, err := g.Command(id, grove.ID, true)
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	cmd, ok := g.Recipe(out.RecipeID)
	if !ok || cmd.Kind != model.KindCommand || cmd.Command.TargetAgentID != id || !cmd.Command.IsPersistent {
		t.Fatalf("command recipe=%+v", cmd)
	}
	if cmd.Name != "command: lumberjack runs [explore: grove]" {
		t.Fatalf("command name=%q", cmd.Name)
	}

	// The command's own turn runs the order once already.
	base := 2
	for turn := 1; turn <= 3; turn++ {
		advance(g)
		a, _ := g.Agent(id)
		if a.AssignedRecipeID != grove.ID || !a.IsPersistent {
			t.Fatalf("turn %d: agent=%+v", turn, a)
		}
		s := g.Snapshot()
		if got := s.Inventory[0].Amount; got != base+2*turn {
			t.Fatalf("turn %d: wood=%d", turn, got)
		}
	}
}

func TestCommand_RejectsUnknownReferences(t *testing.T) {
	g := newTestGame(t, nil, nil)
	id := addAgent(g, "bot")
	if _, err := g.Command("AI-404", "R-001", false); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("unknown agent: %v", err)
	}
	if _, err := g.Command(id, "R-404", false); !errors.Is(err, ErrUnknownRecipe) {
		t.Fatalf("unknown recipe: %v", err)
	}
	if _, err := g.Command("", "", false); !errors.Is(err, ErrBadInput) {
		t.Fatalf("empty ids: %v", err)
	}
	if g.Turn() != 0 {
		t.Fatalf("turn=%d", g.Turn())
	}
}

func TestAgentCommand_PropagatesWithinTurn(t *testing.T) {
	g := newTestGame(t, nil, nil)
	boss := addAgent(g, "foreman")
	worker := addAgent(g, "digger")
	dig := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewExploreRecipe(seq, "explore: pit", "", []model.ItemAmount{{Item: "clay", Amount: 1}})
	})
	order := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewCommandRecipe(seq, "order", "", model.CommandSpec{TargetAgentID: worker, TargetRecipeID: dig.ID, IsPersistent: true})
	})
	assign(g, boss, order.ID, false)
	advance(g)

	if a, _ := g.Agent(boss); !a.Idle() {
		t.Fatalf("foreman should be idle: %+v", a)
	}
	if a, _ := g.Agent(worker); a.AssignedRecipeID != dig.ID || !a.IsPersistent {
		t.Fatalf("digger=%+v", a)
	}
	// The digger comes later in order, so it already dug this turn.
	if s := g.Snapshot(); len(s.Inventory) != 1 || s.Inventory[0].Amount != 1 {
		t.Fatalf("inventory=%+v", s.Inventory)
	}
	if evs := eventsOfType(g, EvAgentCommand); len(evs) != 1 || evs[0].Category != CatAICommand {
		t.Fatalf("command events=%+v", evs)
	}
}

func TestAgentCommand_SelfRetarget(t *testing.T) {
	g := newTestGame(t, nil, nil)
	id := addAgent(g, "loop")
	dig := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewExploreRecipe(seq, "explore: pit", "", []model.ItemAmount{{Item: "clay", Amount: 1}})
	})
	once := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewCommandRecipe(seq, "once", "", model.CommandSpec{TargetAgentID: id, TargetRecipeID: dig.ID})
	})

	// Single-shot self command: the new order is cleared like any other.
	assign(g, id, once.ID, false)
	advance(g)
	if a, _ := g.Agent(id); !a.Idle() {
		t.Fatalf("single-shot self command should leave agent idle: %+v", a)
	}
	advance(g)
	if s := g.Snapshot(); len(s.Inventory) != 0 {
		t.Fatalf("dig ran after self command: %+v", s.Inventory)
	}

	// A persistent agent commanded into a single-shot order loses persistence
	// and goes idle too.
	assign(g, id, once.ID, true)
	advance(g)
	if a, _ := g.Agent(id); !a.Idle() || a.IsPersistent {
		t.Fatalf("persistent agent after single-shot self command: %+v", a)
	}

	// A persistent self command keeps the new order.
	keep := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewCommandRecipe(seq, "keep", "", model.CommandSpec{TargetAgentID: id, TargetRecipeID: dig.ID, IsPersistent: true})
	})
	assign(g, id, keep.ID, false)
	advance(g)
	if a, _ := g.Agent(id); a.AssignedRecipeID != dig.ID || !a.IsPersistent {
		t.Fatalf("persistent self command lost: %+v", a)
	}
	advance(g)
	if s := g.Snapshot(); len(s.Inventory) != 1 || s.Inventory[0].Amount != 1 {
		t.Fatalf("inventory=%+v", s.Inventory)
	}
}

func TestAgentCommand_MissingTarget(t *testing.T) {
	g := newTestGame(t, nil, nil)
	id := addAgent(g, "bot")
	bad := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewCommandRecipe(seq, "bad", "", model.CommandSpec{TargetAgentID: "AI-099", TargetRecipeID: "R-001"})
	})
	assign(g, id, bad.ID, true)
	advance(g)
	if evs := eventsOfType(g, EvAgentError); len(evs) != 1 {
		t.Fatalf("error events=%+v", evs)
	}
	// Persistent command keeps its standing order even when dispatch fails.
	if a, _ := g.Agent(id); a.AssignedRecipeID != bad.ID {
		t.Fatalf("agent=%+v", a)
	}
}

func TestUnknownRecipe_Cleanup(t *testing.T) {
	g := newTestGame(t, nil, nil)
	id := addAgent(g, "bot")
	assign(g, id, "R-999", true)
	advance(g)
	a, _ := g.Agent(id)
	if !a.Idle() || a.IsPersistent {
		t.Fatalf("agent=%+v", a)
	}
	if len(eventsOfType(g, EvAgentError)) != 1 || len(eventsOfType(g, EvAgentsIdle)) != 1 {
		t.Fatalf("events=%+v", g.Events(0))
	}
}

func TestExecuteRecipe(t *testing.T) {
	g := newTestGame(t, map[string]int{"core": 1}, nil)
	bot := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewCraftRecipe(seq, "helper", "", []model.ItemAmount{{Item: "core", Amount: 1}}, []model.ItemAmount{{Item: "helper", Amount: 1}},
			model.CraftSpec{IsAutonomous: true, AutonomousItemName: "helper"})
	})
	id := addAgent(g, "x")
	cmd := addRecipe(g, func(seq uint64) model.Recipe {
		return model.NewCommandRecipe(seq, "cmd", "", model.CommandSpec{TargetAgentID: id, TargetRecipeID: bot.ID})
	})

	if _, err := g.ExecuteRecipe(cmd.ID); !errors.Is(err, ErrCommandRecipe) {
		t.Fatalf("command recipe: %v", err)
	}
	if _, err := g.ExecuteRecipe("R-404"); !errors.Is(err, ErrUnknownRecipe) {
		t.Fatalf("unknown: %v", err)
	}
	out, err := g.ExecuteRecipe(bot.ID)
	if err != nil || out.Status != StatusExecuted || g.Turn() != 1 {
		t.Fatalf("execute: %+v %v", out, err)
	}
	if _, ok := g.Agent("AI-002"); !ok {
		t.Fatalf("autonomous recipe should spawn an agent")
	}
	if _, err := g.ExecuteRecipe(bot.ID); !errors.Is(err, ErrShortage) || g.Turn() != 1 {
		t.Fatalf("shortage: %v turn=%d", err, g.Turn())
	}
}

type memRecorder struct{ entries []TurnLogEntry }

func (m *memRecorder) RecordTurn(e TurnLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestJournal_ReplayReproducesDigest(t *testing.T) {
	starter := map[string]int{"wood": 10, "sharp stone": 5}
	explore := oracle.Judgment{Success: true, Description: "logs", Outputs: []oracle.Amount{{Item: "wood", Amount: 3}}}
	g := newTestGame(t, starter, oracletest.New(spearJudgment(), explore))
	rec := &memRecorder{}
	g.SetTurnRecorder(rec)
	ctx := context.Background()

	intents := []Intent{
		{Kind: IntentCraft, Materials: []string{"wood", "sharp stone"}, Action: "make a spear"},
		{Kind: IntentExplore, Location: "forest"},
		{Kind: IntentCraft, Materials: []string{"sharp stone", "wood"}, Action: "make a spear"},
		{Kind: IntentExecute, RecipeID: "R-002"},
	}
	for _, in := range intents {
		if _, err := g.Apply(ctx, in); err != nil {
			t.Fatalf("apply %+v: %v", in, err)
		}
	}
	if len(rec.entries) != len(intents) {
		t.Fatalf("recorded %d entries", len(rec.entries))
	}
	last := rec.entries[len(rec.entries)-1]
	if last.Turn != 4 || last.Digest != g.Digest() {
		t.Fatalf("last entry=%+v", last)
	}
	if !rec.entries[2].FromCache || rec.entries[0].Judgment == nil {
		t.Fatalf("entries=%+v", rec.entries)
	}

	script := oracletest.New()
	for _, e := range rec.entries {
		if e.Judgment != nil && !e.FromCache {
			script.Push(*e.Judgment)
		}
	}
	replay := newTestGame(t, starter, script)
	for i, e := range rec.entries {
		if _, err := replay.Apply(ctx, e.Intent); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		if got := replay.Digest(); got != e.Digest {
			t.Fatalf("replay %d: digest %s want %s", i, got, e.Digest)
		}
	}
}

func TestEventLog_Retention(t *testing.T) {
	g := New(Config{LogRetention: 3}, nil, nil)
	for i := 0; i < 3; i++ {
		advance(g)
	}
	evs := g.Events(0)
	if len(evs) != 3 {
		t.Fatalf("retained %d events", len(evs))
	}
	if evs[2].Type != EvTurnStart {
		t.Fatalf("last event=%+v", evs[2])
	}
	if after := g.Events(evs[1].Seq); len(after) != 1 {
		t.Fatalf("events after=%+v", after)
	}
}

func TestSink_ReceivesOrderedEvents(t *testing.T) {
	g := newTestGame(t, nil, nil)
	var got []Event
	g.AddSink(EventSinkFunc(func(ev Event) { got = append(got, ev) }))
	advance(g)
	want := []EventType{EvTurnEnd, EvAITurnStart, EvAITurnEnd, EvTurnStart}
	if len(got) != len(want) {
		t.Fatalf("events=%+v", got)
	}
	for i := range want {
		if got[i].Type != want[i] || (i > 0 && got[i].Seq <= got[i-1].Seq) {
			t.Fatalf("event %d=%+v", i, got[i])
		}
	}
}

func TestReplay_VerifiesJournal(t *testing.T) {
	starter := map[string]int{"wood": 10, "sharp stone": 5}
	g := newTestGame(t, starter, oracletest.New(spearJudgment()))
	rec := &memRecorder{}
	g.SetTurnRecorder(rec)
	ctx := context.Background()

	for _, in := range []Intent{
		{Kind: IntentCraft, Materials: []string{"wood", "sharp stone"}, Action: "make a spear"},
		{Kind: IntentExecute, RecipeID: "R-001"},
	} {
		if _, err := g.Apply(ctx, in); err != nil {
			t.Fatalf("apply %+v: %v", in, err)
		}
	}

	n, err := Replay(ctx, Config{StarterItems: starter}, rec.entries, nil)
	if err != nil || n != 2 {
		t.Fatalf("replay n=%d err=%v", n, err)
	}

	tampered := append([]TurnLogEntry(nil), rec.entries...)
	tampered[1].Digest = "bogus"
	if _, err := Replay(ctx, Config{StarterItems: starter}, tampered, nil); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("tampered replay err=%v", err)
	}
}
