package game

import (
	"fmt"

	"oraclecraft.ai/internal/sim/model"
)

// resolveAgent runs one agent's standing order for this turn.
func (g *Game) resolveAgent(a *model.Agent, r model.Recipe) {
	if !g.inventory.HasSufficient(r.Inputs) {
		g.emit(CatAI, EvAgentShort, fmt.Sprintf("[%s] tried to run %q but lacked the materials.", a.Name, r.Name), a.ID, r.ID)
		if a.IsPersistent {
			g.emit(CatError, EvAgentStopped, fmt.Sprintf("[%s]'s standing order stopped: materials ran out.", a.Name), a.ID, r.ID)
		}
		a.Stop()
		return
	}
	g.inventory.Consume(r.Inputs)

	switch r.Kind {
	case model.KindCraft, model.KindExplore:
		g.creditOutputs(r)
		g.emit(CatAI, EvAgentActed, fmt.Sprintf("[%s] ran %q. ( %s )", a.Name, r.Name, model.FormatAmounts(r.Outputs, ", ")), a.ID, r.ID)
		if name, ok := r.SpawnsAgent(); ok {
			na := g.spawnAgent(name)
			g.emit(CatSuccess, EvAgentSpawned, fmt.Sprintf("[%s] crafted a new AI [%s] (%s)!", a.Name, na.Name, na.ID), na.ID, r.ID)
		}
	case model.KindCommand:
		g.dispatchCommand(a, r)
	}

	// Read after the branch: a command may have rewritten a's own order.
	if !a.IsPersistent {
		a.AssignedRecipeID = ""
	}
}

// dispatchCommand hands the command's standing order to its target agent.
func (g *Game) dispatchCommand(a *model.Agent, r model.Recipe) {
	spec := r.Command
	target := g.agents[spec.TargetAgentID]
	if target == nil {
		g.emit(CatError, EvAgentError, fmt.Sprintf("[%s] tried to command a nonexistent AI (%s).", a.Name, spec.TargetAgentID), a.ID, r.ID)
		return
	}
	tr, ok := g.recipes[spec.TargetRecipeID]
	if !ok {
		g.emit(CatError, EvAgentError, fmt.Sprintf("[%s] tried to order a nonexistent recipe (%s).", a.Name, spec.TargetRecipeID), a.ID, r.ID)
		return
	}
	target.Assign(tr.ID, spec.IsPersistent)
	g.emit(CatAICommand, EvAgentCommand, fmt.Sprintf("[%s] ordered [%s]: %q%s", a.Name, target.Name, tr.Name, persistentTag(spec.IsPersistent)), target.ID, tr.ID)
}

func (g *Game) creditOutputs(r model.Recipe) {
	for _, o := range r.Outputs {
		g.inventory.Credit(o.Item, float64(o.Amount))
	}
}

func persistentTag(p bool) string {
	if p {
		return " [persistent]"
	}
	return ""
}
