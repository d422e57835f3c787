package model

import "fmt"

func RecipeID(seq uint64) string { return fmt.Sprintf("R-%03d", seq) }

func AgentID(seq uint64) string { return fmt.Sprintf("AI-%03d", seq) }
