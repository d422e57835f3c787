package game

import (
	"fmt"
	"strings"

	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/sim/ledger"
	"oraclecraft.ai/internal/sim/model"
)

type Status string

const (
	StatusApplied   Status = "applied"
	StatusRejected  Status = "rejected"
	StatusShortage  Status = "shortage"
	StatusMalformed Status = "malformed"
	StatusExecuted  Status = "executed"
	StatusCommanded Status = "commanded"
)

// Outcome summarizes a player intent.
type Outcome struct {
	Status       Status `json:"status"`
	TurnConsumed bool   `json:"turn_consumed"`
	Turn         uint64 `json:"turn"`
	RecipeID     string `json:"recipe_id,omitempty"`
	FromCache    bool   `json:"from_cache,omitempty"`
}

// savepoint captures everything a judgment application may touch.
type savepoint struct {
	inventory     ledger.Inventory
	nextAgentNum  uint64
	nextRecipeNum uint64
	cache         map[string]bool
	outboxLen     int
}

func (g *Game) save() savepoint {
	keys := make(map[string]bool, len(g.cache))
	for k := range g.cache {
		keys[k] = true
	}
	return savepoint{
		inventory:     g.inventory.Clone(),
		nextAgentNum:  g.nextAgentNum,
		nextRecipeNum: g.nextRecipeNum,
		cache:         keys,
		outboxLen:     len(g.outbox),
	}
}

// rollback undoes a partial application. Agents and recipes are only ever
// added, so anything numbered past the savepoint is removed.
func (g *Game) rollback(sp savepoint) {
	g.inventory = sp.inventory
	for id, a := range g.agents {
		if a.Seq > sp.nextAgentNum {
			delete(g.agents, id)
		}
	}
	for id, r := range g.recipes {
		if r.Seq > sp.nextRecipeNum {
			delete(g.recipes, id)
		}
	}
	for k := range g.cache {
		if !sp.cache[k] {
			delete(g.cache, k)
		}
	}
	g.nextAgentNum = sp.nextAgentNum
	g.nextRecipeNum = sp.nextRecipeNum
	g.outbox = g.outbox[:sp.outboxLen]
}

type application struct {
	judgment oracle.Judgment
	kind     model.RecipeKind
	action   string
	recipeID string // set on cache replay
	cacheKey string
}

// applyJudgment mutates the store as one all-or-nothing step. The returned
// bool reports whether the attempt consumed a turn.
func (g *Game) applyJudgment(app application) (Outcome, bool) {
	sp := g.save()
	out, consumed, err := g.applyJudgmentTx(app)
	if err != nil {
		g.rollback(sp)
		g.log.Warn("judgment rolled back", "kind", app.kind, "action", app.action, "error", err)
		g.emit(CatError, EvProcessingError, fmt.Sprintf("An unexpected error occurred while processing the result: %v", err))
		return Outcome{Status: StatusMalformed}, true
	}
	return out, consumed
}

func (g *Game) applyJudgmentTx(app application) (out Outcome, consumed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, consumed, err = Outcome{}, true, fmt.Errorf("panic: %v", r)
		}
	}()

	j := app.judgment
	if !j.Success {
		g.emit(CatError, EvJudgmentFailed, j.Description)
		return Outcome{Status: StatusRejected}, true, nil
	}
	if err := j.Check(); err != nil {
		return Outcome{}, true, fmt.Errorf("%w: %v", errMalformed, err)
	}

	inputs := roundAmounts(j.Inputs)
	outputs := roundAmounts(j.Outputs)
	if !g.inventory.Consume(inputs) {
		name := app.action
		if name == "" {
			name = string(app.kind)
		}
		g.emit(CatError, EvShortage, fmt.Sprintf("Tried to %q but lacked the materials.", name))
		return Outcome{Status: StatusShortage}, false, nil
	}
	for _, o := range outputs {
		g.inventory.Credit(o.Item, float64(o.Amount))
	}

	itemName := strings.TrimSpace(j.ItemName)
	autonomous := app.kind == model.KindCraft && j.IsAutonomous && itemName != ""
	if autonomous {
		a := g.spawnAgent(itemName)
		g.emit(CatSuccess, EvAgentSpawned, fmt.Sprintf("A new AI [%s] (%s) has come online!", a.Name, a.ID), a.ID)
	}

	recipeID := app.recipeID
	if recipeID == "" {
		r, err := g.discoverRecipe(app, inputs, outputs, itemName, autonomous)
		if err != nil {
			return Outcome{}, true, err
		}
		recipeID = r.ID
	}

	g.emit(CatSuccess, EvJudgmentApplied, j.Description, "", recipeID)
	return Outcome{Status: StatusApplied, RecipeID: recipeID}, true, nil
}

func (g *Game) discoverRecipe(app application, inputs, outputs []model.ItemAmount, itemName string, autonomous bool) (model.Recipe, error) {
	seq := g.allocRecipeSeq()
	var r model.Recipe
	switch app.kind {
	case model.KindCraft:
		name := itemName
		if name == "" {
			name = "unknown craft"
		}
		desc := fmt.Sprintf("%s => %s", model.FormatAmounts(inputs, "+"), model.FormatAmounts(outputs, "+"))
		spec := model.CraftSpec{IsAutonomous: autonomous}
		if autonomous {
			spec.AutonomousItemName = itemName
		}
		r = model.NewCraftRecipe(seq, name, desc, inputs, outputs, spec)
	case model.KindExplore:
		desc := fmt.Sprintf("%s => %s", app.action, model.FormatAmounts(outputs, "+"))
		r = model.NewExploreRecipe(seq, "explore: "+app.action, desc, outputs)
	default:
		return model.Recipe{}, fmt.Errorf("%w: cannot discover %q recipe", errMalformed, app.kind)
	}
	if err := r.Validate(); err != nil {
		return model.Recipe{}, err
	}
	g.recipes[r.ID] = r
	if app.cacheKey != "" {
		g.cache[app.cacheKey] = CacheEntry{RecipeID: r.ID, Kind: app.kind, Judgment: app.judgment.Clone()}
	}
	g.emit(CatSystem, EvRecipeDiscovered, fmt.Sprintf("New [%s] recipe %q (%s) discovered!", r.Kind, r.Name, r.ID), "", r.ID)
	return r, nil
}

// roundAmounts converts oracle amounts to ledger quantities, skipping
// anything that rounds to zero or below.
func roundAmounts(xs []oracle.Amount) []model.ItemAmount {
	out := make([]model.ItemAmount, 0, len(xs))
	for _, x := range xs {
		n := ledger.Round(x.Amount)
		if n <= 0 {
			continue
		}
		out = append(out, model.ItemAmount{Item: x.Item, Amount: n})
	}
	return out
}
