package game

import "fmt"

// advanceTurn is the single serialization point after a turn-consuming
// action: bump the counter, resolve every agent, then release input.
func (g *Game) advanceTurn() {
	g.turn++
	g.emit(CatTurn, EvTurnEnd, fmt.Sprintf("--- Turn %d ends ---", g.turn-1))

	g.runAgentTurn()

	g.emit(CatTurn, EvTurnStart, fmt.Sprintf("--- Turn %d begins ---", g.turn))
	g.loading = false
	if g.op != nil {
		g.op.advanced = true
	}
}

// runAgentTurn resolves agents in ascending id order. Agents spawned during
// resolution act from the next turn on.
func (g *Game) runAgentTurn() {
	g.emit(CatTurn, EvAITurnStart, "--- AI turn begins ---")
	order := g.agentOrder()
	acted := false
	for _, id := range order {
		a := g.agents[id]
		if a == nil || a.Idle() {
			continue
		}
		r, ok := g.recipes[a.AssignedRecipeID]
		if !ok {
			g.emit(CatError, EvAgentError, fmt.Sprintf("[%s] tried to run an unknown recipe (%s).", a.Name, a.AssignedRecipeID), a.ID, a.AssignedRecipeID)
			a.Stop()
			continue
		}
		g.resolveAgent(a, r)
		acted = true
	}
	if !acted && len(order) > 0 {
		g.emit(CatAI, EvAgentsIdle, "All AIs are standing by...")
	}
	g.emit(CatTurn, EvAITurnEnd, "--- AI turn ends ---")
}
