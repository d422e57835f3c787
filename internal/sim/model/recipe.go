package model

import (
	"fmt"
	"strings"
)

type RecipeKind string

const (
	KindCraft   RecipeKind = "craft"
	KindExplore RecipeKind = "explore"
	KindCommand RecipeKind = "command"
)

func (k RecipeKind) Valid() bool {
	switch k {
	case KindCraft, KindExplore, KindCommand:
		return true
	}
	return false
}

type ItemAmount struct {
	Item   string `json:"item"`
	Amount int    `json:"amount"`
}

// CraftSpec is the craft-only payload of a Recipe.
type CraftSpec struct {
	IsAutonomous       bool   `json:"is_autonomous"`
	AutonomousItemName string `json:"autonomous_item_name,omitempty"`
}

// CommandSpec binds a target agent to a target recipe.
type CommandSpec struct {
	TargetAgentID  string `json:"target_agent_id"`
	TargetRecipeID string `json:"target_recipe_id"`
	IsPersistent   bool   `json:"is_persistent"`
}

// Recipe is a discovered rule. Exactly one of Craft/Command is set for the
// craft/command kinds; explore recipes carry neither.
type Recipe struct {
	ID          string       `json:"id"`
	Seq         uint64       `json:"seq"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Kind        RecipeKind   `json:"kind"`
	Inputs      []ItemAmount `json:"inputs"`
	Outputs     []ItemAmount `json:"outputs"`

	Craft   *CraftSpec   `json:"craft,omitempty"`
	Command *CommandSpec `json:"command,omitempty"`
}

func NewCraftRecipe(seq uint64, name, desc string, inputs, outputs []ItemAmount, spec CraftSpec) Recipe {
	if !spec.IsAutonomous {
		spec.AutonomousItemName = ""
	}
	return Recipe{
		ID:          RecipeID(seq),
		Seq:         seq,
		Name:        name,
		Description: desc,
		Kind:        KindCraft,
		Inputs:      cloneAmounts(inputs),
		Outputs:     cloneAmounts(outputs),
		Craft:       &spec,
	}
}

func NewExploreRecipe(seq uint64, name, desc string, outputs []ItemAmount) Recipe {
	return Recipe{
		ID:          RecipeID(seq),
		Seq:         seq,
		Name:        name,
		Description: desc,
		Kind:        KindExplore,
		Inputs:      []ItemAmount{},
		Outputs:     cloneAmounts(outputs),
	}
}

// NewCommandRecipe reifies an instruction as a zero-input, zero-output recipe.
func NewCommandRecipe(seq uint64, name, desc string, spec CommandSpec) Recipe {
	return Recipe{
		ID:          RecipeID(seq),
		Seq:         seq,
		Name:        name,
		Description: desc,
		Kind:        KindCommand,
		Inputs:      []ItemAmount{},
		Outputs:     []ItemAmount{},
		Command:     &spec,
	}
}

// Validate checks that the kind payload matches Kind.
func (r Recipe) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("recipe: empty id")
	}
	switch r.Kind {
	case KindCraft:
		if r.Craft == nil || r.Command != nil {
			return fmt.Errorf("recipe %s: craft needs craft payload only", r.ID)
		}
		if r.Craft.IsAutonomous && strings.TrimSpace(r.Craft.AutonomousItemName) == "" {
			return fmt.Errorf("recipe %s: autonomous craft without item name", r.ID)
		}
	case KindExplore:
		if r.Craft != nil || r.Command != nil {
			return fmt.Errorf("recipe %s: explore carries no payload", r.ID)
		}
		if len(r.Inputs) != 0 {
			return fmt.Errorf("recipe %s: explore has inputs", r.ID)
		}
	case KindCommand:
		if r.Command == nil || r.Craft != nil {
			return fmt.Errorf("recipe %s: command needs command payload only", r.ID)
		}
		if r.Command.TargetAgentID == "" || r.Command.TargetRecipeID == "" {
			return fmt.Errorf("recipe %s: command without target", r.ID)
		}
		if len(r.Inputs) != 0 || len(r.Outputs) != 0 {
			return fmt.Errorf("recipe %s: command has materials", r.ID)
		}
	default:
		return fmt.Errorf("recipe %s: unknown kind %q", r.ID, r.Kind)
	}
	for _, in := range r.Inputs {
		if in.Item == "" || in.Amount < 0 {
			return fmt.Errorf("recipe %s: bad input %+v", r.ID, in)
		}
	}
	for _, out := range r.Outputs {
		if out.Item == "" {
			return fmt.Errorf("recipe %s: bad output %+v", r.ID, out)
		}
	}
	return nil
}

// SpawnsAgent reports the agent name this recipe spawns when executed.
func (r Recipe) SpawnsAgent() (string, bool) {
	if r.Kind != KindCraft || r.Craft == nil || !r.Craft.IsAutonomous || r.Craft.AutonomousItemName == "" {
		return "", false
	}
	return r.Craft.AutonomousItemName, true
}

// Clone returns a deep copy safe to hand to readers.
func (r Recipe) Clone() Recipe {
	out := r
	out.Inputs = cloneAmounts(r.Inputs)
	out.Outputs = cloneAmounts(r.Outputs)
	if r.Craft != nil {
		c := *r.Craft
		out.Craft = &c
	}
	if r.Command != nil {
		c := *r.Command
		out.Command = &c
	}
	return out
}

// FormatAmounts renders "item x1+other x2" style lists.
func FormatAmounts(xs []ItemAmount, sep string) string {
	parts := make([]string, 0, len(xs))
	for _, x := range xs {
		parts = append(parts, fmt.Sprintf("%sx%d", x.Item, x.Amount))
	}
	return strings.Join(parts, sep)
}

func cloneAmounts(xs []ItemAmount) []ItemAmount {
	out := make([]ItemAmount, len(xs))
	copy(out, xs)
	return out
}
