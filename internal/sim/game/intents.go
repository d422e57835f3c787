package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/sim/model"
)

// Apply dispatches a decoded intent. A CRAFT intent carrying Materials
// replaces the current selection first.
func (g *Game) Apply(ctx context.Context, in Intent) (Outcome, error) {
	switch in.Kind {
	case IntentToggleMaterial:
		_, err := g.ToggleMaterial(in.Item)
		return Outcome{Turn: g.Turn()}, err
	case IntentCraft:
		if len(in.Materials) > 0 {
			if err := g.SelectMaterials(in.Materials); err != nil {
				return Outcome{}, err
			}
		}
		return g.Craft(ctx, in.Action)
	case IntentExplore:
		return g.Explore(ctx, in.Location)
	case IntentCommand:
		return g.Command(in.AgentID, in.RecipeID, in.Persistent)
	case IntentExecute:
		return g.ExecuteRecipe(in.RecipeID)
	default:
		return Outcome{}, fmt.Errorf("%w: unknown intent %q", ErrBadInput, in.Kind)
	}
}

// ToggleMaterial adds item to the craft selection, or removes it when already
// selected. It reports whether the item is selected afterwards.
func (g *Game) ToggleMaterial(item string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading {
		return false, ErrBusy
	}
	for i, s := range g.selection {
		if s == item {
			g.selection = append(g.selection[:i], g.selection[i+1:]...)
			return false, nil
		}
	}
	if g.inventory.Quantity(item) <= 0 {
		return false, fmt.Errorf("%w: %q is not in the inventory", ErrBadInput, item)
	}
	g.selection = append(g.selection, item)
	return true, nil
}

// SelectMaterials replaces the selection wholesale.
func (g *Game) SelectMaterials(items []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading {
		return ErrBusy
	}
	sel := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		if g.inventory.Quantity(item) <= 0 {
			return fmt.Errorf("%w: %q is not in the inventory", ErrBadInput, item)
		}
		seen[item] = true
		sel = append(sel, item)
	}
	g.selection = sel
	return nil
}

func (g *Game) SelectedMaterials() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.selection...)
}

// Craft asks for a judgment on the selected materials and action. The
// selection is cleared once the request is dispatched.
func (g *Game) Craft(ctx context.Context, action string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading {
		return Outcome{}, ErrBusy
	}
	action = strings.TrimSpace(action)
	if len(g.selection) == 0 {
		return Outcome{}, fmt.Errorf("%w: select at least one material", ErrBadInput)
	}
	if action == "" {
		return Outcome{}, fmt.Errorf("%w: action is required", ErrBadInput)
	}
	materials := g.selection
	g.selection = nil

	g.beginOp(Intent{Kind: IntentCraft, Materials: materials, Action: action})
	defer g.endOp()
	app := application{kind: model.KindCraft, action: action, cacheKey: CraftCacheKey(materials, action)}
	return g.judge(ctx, app, oracle.CraftSystemPrompt, oracle.CraftQuery(materials, action), oracle.CraftSchema)
}

func (g *Game) Explore(ctx context.Context, location string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading {
		return Outcome{}, ErrBusy
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return Outcome{}, fmt.Errorf("%w: location is required", ErrBadInput)
	}

	g.beginOp(Intent{Kind: IntentExplore, Location: location})
	defer g.endOp()
	app := application{kind: model.KindExplore, action: location, cacheKey: ExploreCacheKey(location)}
	return g.judge(ctx, app, oracle.ExploreSystemPrompt, oracle.ExploreQuery(location), oracle.ExploreSchema)
}

// judge obtains a judgment from the cache or the oracle and applies it. The
// lock is released only for the oracle round-trip; loading stays set so no
// other intent is admitted meanwhile.
func (g *Game) judge(ctx context.Context, app application, system, query string, schema *oracle.Schema) (Outcome, error) {
	g.loading = true

	if e, ok := g.cache[app.cacheKey]; ok {
		g.emit(CatSystem, EvCacheHit, "(replayed from cache)", "", e.RecipeID)
		app.judgment = e.Judgment.Clone()
		app.recipeID = e.RecipeID
		g.op.fromCache = true
		return g.finishJudgment(app)
	}

	g.suspend()
	g.mu.Unlock()
	j, err := g.oracle.RequestJudgment(oracle.WithRetryNotifier(ctx, g.notifyRetry), system, query, schema)
	g.mu.Lock()

	if err != nil {
		g.log.Warn("oracle failed", "kind", app.kind, "action", app.action, "error", err)
		g.emit(CatError, EvOracleFailed, "Could not reach the laws of the world. Please try again.")
		g.loading = false
		return Outcome{Turn: g.turn}, fmt.Errorf("%w: %v", ErrOracle, err)
	}
	app.judgment = j
	return g.finishJudgment(app)
}

func (g *Game) notifyRetry(attempt int, err error, wait time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.emit(CatSystem, EvOracleRetry, fmt.Sprintf("Request failed. Retrying in %s... (%d)", wait, attempt))
	g.suspend()
}

func (g *Game) finishJudgment(app application) (Outcome, error) {
	j := app.judgment.Clone()
	g.op.judgment = &j

	out, consumed := g.applyJudgment(app)
	out.FromCache = g.op.fromCache
	if !consumed {
		g.loading = false
		out.Turn = g.turn
		return out, ErrShortage
	}
	g.advanceTurn()
	out.TurnConsumed = true
	out.Turn = g.turn
	return out, nil
}

// Command assigns a standing order to an agent and records the instruction
// as a command recipe other agents can later run.
func (g *Game) Command(agentID, recipeID string, persistent bool) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading {
		return Outcome{}, ErrBusy
	}
	if agentID == "" || recipeID == "" {
		return Outcome{}, fmt.Errorf("%w: both an agent and a recipe are required", ErrBadInput)
	}
	a := g.agents[agentID]
	if a == nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	target, ok := g.recipes[recipeID]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownRecipe, recipeID)
	}

	g.beginOp(Intent{Kind: IntentCommand, AgentID: agentID, RecipeID: recipeID, Persistent: persistent})
	defer g.endOp()
	g.loading = true

	a.Assign(target.ID, persistent)
	g.emit(CatSuccess, EvCommandIssued, fmt.Sprintf("Ordered [%s] to run %q%s.", a.Name, target.Name, persistentTag(persistent)), a.ID, target.ID)

	mode := "once"
	if persistent {
		mode = "persistently"
	}
	r := model.NewCommandRecipe(g.allocRecipeSeq(),
		fmt.Sprintf("command: %s runs [%s]", a.Name, target.Name),
		fmt.Sprintf("%s (%s) runs %s (%s) %s", a.Name, a.ID, target.Name, target.ID, mode),
		model.CommandSpec{TargetAgentID: a.ID, TargetRecipeID: target.ID, IsPersistent: persistent})
	g.recipes[r.ID] = r
	g.emit(CatSystem, EvRecipeDiscovered, fmt.Sprintf("New [command] recipe %q (%s) discovered!", r.Name, r.ID), "", r.ID)

	g.advanceTurn()
	return Outcome{Status: StatusCommanded, TurnConsumed: true, Turn: g.turn, RecipeID: r.ID}, nil
}

// ExecuteRecipe has the player run a known craft or explore recipe directly,
// without consulting the oracle.
func (g *Game) ExecuteRecipe(recipeID string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading {
		return Outcome{}, ErrBusy
	}
	r, ok := g.recipes[recipeID]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownRecipe, recipeID)
	}
	if r.Kind == model.KindCommand {
		return Outcome{}, ErrCommandRecipe
	}

	g.beginOp(Intent{Kind: IntentExecute, RecipeID: recipeID})
	defer g.endOp()

	if !g.inventory.Consume(r.Inputs) {
		g.emit(CatError, EvShortage, fmt.Sprintf("Not enough materials to run %q.", r.Name), "", r.ID)
		return Outcome{Status: StatusShortage, Turn: g.turn, RecipeID: r.ID}, ErrShortage
	}
	g.loading = true
	g.creditOutputs(r)
	g.emit(CatSuccess, EvRecipeExecuted, fmt.Sprintf("Ran %q. ( %s )", r.Name, model.FormatAmounts(r.Outputs, ", ")), "", r.ID)
	if name, ok := r.SpawnsAgent(); ok {
		a := g.spawnAgent(name)
		g.emit(CatSuccess, EvAgentSpawned, fmt.Sprintf("A new AI [%s] (%s) has come online!", a.Name, a.ID), a.ID, r.ID)
	}

	g.advanceTurn()
	return Outcome{Status: StatusExecuted, TurnConsumed: true, Turn: g.turn, RecipeID: r.ID}, nil
}
