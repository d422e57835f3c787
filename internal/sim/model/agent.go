package model

type Agent struct {
	ID               string `json:"id"`
	Seq              uint64 `json:"seq"`
	Name             string `json:"name"`
	AssignedRecipeID string `json:"assigned_recipe_id,omitempty"`
	IsPersistent     bool   `json:"is_persistent"`
}

func NewAgent(seq uint64, name string) Agent {
	return Agent{ID: AgentID(seq), Seq: seq, Name: name}
}

func (a Agent) Idle() bool { return a.AssignedRecipeID == "" }

// Assign overwrites any standing order, persistent or not.
func (a *Agent) Assign(recipeID string, persistent bool) {
	a.AssignedRecipeID = recipeID
	a.IsPersistent = persistent
}

// Stop clears the assignment and the persistence flag.
func (a *Agent) Stop() {
	a.AssignedRecipeID = ""
	a.IsPersistent = false
}
