package game

import (
	"sort"
	"strings"

	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/sim/model"
)

// CacheEntry replays a discovered judgment under its original recipe id.
type CacheEntry struct {
	RecipeID string           `json:"recipe_id"`
	Kind     model.RecipeKind `json:"kind"`
	Judgment oracle.Judgment  `json:"judgment"`
}

// CraftCacheKey is independent of the order materials were selected in.
func CraftCacheKey(materials []string, action string) string {
	sorted := append([]string(nil), materials...)
	sort.Strings(sorted)
	return "craft:" + strings.Join(sorted, "|") + ":" + action
}

func ExploreCacheKey(location string) string {
	return "explore:" + location
}
