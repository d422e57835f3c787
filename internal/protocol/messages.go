package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	// SinceSeq asks for retained events after this sequence number.
	SinceSeq uint64 `json:"since_seq,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Turn            uint64 `json:"turn"`
}

// INTENT (client -> server)
type IntentMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	IntentID        string   `json:"intent_id"`
	Intent          string   `json:"intent"`
	Item            string   `json:"item,omitempty"`
	Materials       []string `json:"materials,omitempty"`
	Action          string   `json:"action,omitempty"`
	Location        string   `json:"location,omitempty"`
	AgentID         string   `json:"agent_id,omitempty"`
	RecipeID        string   `json:"recipe_id,omitempty"`
	Persistent      bool     `json:"persistent,omitempty"`
}

// ACK (server -> client)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IntentID        string `json:"intent_id"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`

	Status       string `json:"status,omitempty"`
	TurnConsumed bool   `json:"turn_consumed,omitempty"`
	Turn         uint64 `json:"turn"`
	RecipeID     string `json:"recipe_id,omitempty"`
	FromCache    bool   `json:"from_cache,omitempty"`
}

// EVENT (server -> client)
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Event           Event  `json:"event"`
}

type Event struct {
	Seq      uint64 `json:"seq"`
	Turn     uint64 `json:"turn"`
	Kind     string `json:"kind"`
	Category string `json:"category"` // system, success, error, system-turn, ai, ai-command
	Text     string `json:"text"`
	AgentID  string `json:"agent_id,omitempty"`
	RecipeID string `json:"recipe_id,omitempty"`
}

// SNAPSHOT (server -> client)
type SnapshotMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Turn            uint64 `json:"turn"`
	Loading         bool   `json:"loading"`
	Digest          string `json:"digest"`

	Inventory []ItemStack `json:"inventory"`
	Recipes   []RecipeObs `json:"recipes"`
	Agents    []AgentObs  `json:"agents"`
	Cache     []CacheObs  `json:"cache"`
	Selection []string    `json:"selection"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type RecipeObs struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Kind        string      `json:"kind"` // craft, explore, command
	Inputs      []ItemStack `json:"inputs"`
	Outputs     []ItemStack `json:"outputs"`

	IsAutonomous       bool   `json:"is_autonomous,omitempty"`
	AutonomousItemName string `json:"autonomous_item_name,omitempty"`

	TargetAgentID  string `json:"target_agent_id,omitempty"`
	TargetRecipeID string `json:"target_recipe_id,omitempty"`
	IsPersistent   bool   `json:"is_persistent,omitempty"`
}

type AgentObs struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	AssignedRecipeID string `json:"assigned_recipe_id,omitempty"`
	IsPersistent     bool   `json:"is_persistent"`
}

type CacheObs struct {
	Key      string `json:"key"`
	RecipeID string `json:"recipe_id"`
}
