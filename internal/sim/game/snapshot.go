package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"oraclecraft.ai/internal/sim/model"
)

// Snapshot is a read-only copy of the game state. Nothing in it aliases the
// live Game.
type Snapshot struct {
	Turn      uint64             `json:"turn"`
	Loading   bool               `json:"loading"`
	Inventory []model.ItemAmount `json:"inventory"`
	Recipes   []model.Recipe     `json:"recipes"`
	Agents    []model.Agent      `json:"agents"`
	Cache     []CacheView        `json:"cache"`
	Selection []string           `json:"selection"`
	Digest    string             `json:"digest"`
}

type CacheView struct {
	Key      string `json:"key"`
	RecipeID string `json:"recipe_id"`
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Turn:      g.turn,
		Loading:   g.loading,
		Inventory: g.inventory.Stacks(),
		Recipes:   make([]model.Recipe, 0, len(g.recipes)),
		Agents:    make([]model.Agent, 0, len(g.agents)),
		Cache:     make([]CacheView, 0, len(g.cache)),
		Selection: append([]string{}, g.selection...),
		Digest:    g.digestLocked(),
	}
	for _, id := range g.recipeOrder() {
		s.Recipes = append(s.Recipes, g.recipes[id].Clone())
	}
	for _, id := range g.agentOrder() {
		s.Agents = append(s.Agents, *g.agents[id])
	}
	for _, k := range g.cacheKeys() {
		s.Cache = append(s.Cache, CacheView{Key: k, RecipeID: g.cache[k].RecipeID})
	}
	return s
}

// Digest hashes the replayable state: turn, counters, inventory, recipes,
// agents and cache bindings. Selection, loading and the event log are
// excluded.
func (g *Game) Digest() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.digestLocked()
}

func (g *Game) digestLocked() string {
	h := sha256.New()
	var tmp [8]byte

	writeU64(h, &tmp, g.turn)
	writeU64(h, &tmp, g.nextAgentNum)
	writeU64(h, &tmp, g.nextRecipeNum)

	stacks := g.inventory.Stacks()
	writeU64(h, &tmp, uint64(len(stacks)))
	for _, st := range stacks {
		writeStr(h, &tmp, st.Item)
		writeU64(h, &tmp, uint64(st.Amount))
	}

	ids := g.recipeOrder()
	writeU64(h, &tmp, uint64(len(ids)))
	for _, id := range ids {
		digestRecipe(h, &tmp, g.recipes[id])
	}

	ids = g.agentOrder()
	writeU64(h, &tmp, uint64(len(ids)))
	for _, id := range ids {
		a := g.agents[id]
		writeStr(h, &tmp, a.ID)
		writeStr(h, &tmp, a.Name)
		writeStr(h, &tmp, a.AssignedRecipeID)
		h.Write([]byte{boolByte(a.IsPersistent)})
	}

	keys := g.cacheKeys()
	writeU64(h, &tmp, uint64(len(keys)))
	for _, k := range keys {
		writeStr(h, &tmp, k)
		writeStr(h, &tmp, g.cache[k].RecipeID)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestRecipe(h hash.Hash, tmp *[8]byte, r model.Recipe) {
	writeStr(h, tmp, r.ID)
	writeStr(h, tmp, string(r.Kind))
	writeStr(h, tmp, r.Name)
	writeStr(h, tmp, r.Description)
	for _, xs := range [][]model.ItemAmount{r.Inputs, r.Outputs} {
		writeU64(h, tmp, uint64(len(xs)))
		for _, x := range xs {
			writeStr(h, tmp, x.Item)
			writeU64(h, tmp, uint64(int64(x.Amount)))
		}
	}
	if c := r.Craft; c != nil {
		h.Write([]byte{'c', boolByte(c.IsAutonomous)})
		writeStr(h, tmp, c.AutonomousItemName)
	}
	if c := r.Command; c != nil {
		h.Write([]byte{'m', boolByte(c.IsPersistent)})
		writeStr(h, tmp, c.TargetAgentID)
		writeStr(h, tmp, c.TargetRecipeID)
	}
}

func (g *Game) recipeOrder() []string {
	ids := make([]string, 0, len(g.recipes))
	for id := range g.recipes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return g.recipes[ids[i]].Seq < g.recipes[ids[j]].Seq })
	return ids
}

func (g *Game) cacheKeys() []string {
	keys := make([]string, 0, len(g.cache))
	for k := range g.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeStr(h hash.Hash, tmp *[8]byte, s string) {
	writeU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
