package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"oraclecraft.ai/internal/protocol"
	"oraclecraft.ai/internal/sim/game"
	"oraclecraft.ai/internal/sim/model"
)

// ErrorCode maps a game error to its wire code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, game.ErrBusy):
		return protocol.ErrBusy
	case errors.Is(err, game.ErrBadInput):
		return protocol.ErrBadRequest
	case errors.Is(err, game.ErrUnknownAgent), errors.Is(err, game.ErrUnknownRecipe), errors.Is(err, game.ErrCommandRecipe):
		return protocol.ErrInvalidTarget
	case errors.Is(err, game.ErrShortage):
		return protocol.ErrNoResource
	case errors.Is(err, game.ErrOracle):
		return protocol.ErrOracle
	default:
		return protocol.ErrInternal
	}
}

func decodeIntent(msg []byte) (protocol.IntentMsg, string, error) {
	var im protocol.IntentMsg
	if err := json.Unmarshal(msg, &im); err != nil {
		return im, protocol.ErrProtoBadRequest, err
	}
	if im.ProtocolVersion != protocol.Version {
		return im, protocol.ErrProtoBadRequest, fmt.Errorf("bad protocol_version %q", im.ProtocolVersion)
	}
	var raw any
	if err := json.Unmarshal(msg, &raw); err != nil {
		return im, protocol.ErrProtoBadRequest, err
	}
	if err := protocol.ValidateIntent(raw); err != nil {
		return im, protocol.ErrProtoBadRequest, err
	}
	return im, "", nil
}

func toGameIntent(im protocol.IntentMsg) game.Intent {
	return game.Intent{
		Kind:       game.IntentKind(im.Intent),
		Item:       im.Item,
		Materials:  im.Materials,
		Action:     im.Action,
		Location:   im.Location,
		AgentID:    im.AgentID,
		RecipeID:   im.RecipeID,
		Persistent: im.Persistent,
	}
}

func toProtoEvent(ev game.Event) protocol.Event {
	return protocol.Event{
		Seq:      ev.Seq,
		Turn:     ev.Turn,
		Kind:     string(ev.Type),
		Category: string(ev.Category),
		Text:     ev.Text,
		AgentID:  ev.AgentID,
		RecipeID: ev.RecipeID,
	}
}

func toProtoEvents(evs []game.Event) []protocol.Event {
	out := make([]protocol.Event, 0, len(evs))
	for _, ev := range evs {
		out = append(out, toProtoEvent(ev))
	}
	return out
}

func stacks(xs []model.ItemAmount) []protocol.ItemStack {
	out := make([]protocol.ItemStack, 0, len(xs))
	for _, x := range xs {
		out = append(out, protocol.ItemStack{Item: x.Item, Count: x.Amount})
	}
	return out
}

func snapshotMsg(s game.Snapshot) protocol.SnapshotMsg {
	m := protocol.SnapshotMsg{
		Type:            protocol.TypeSnapshot,
		ProtocolVersion: protocol.Version,
		Turn:            s.Turn,
		Loading:         s.Loading,
		Digest:          s.Digest,
		Inventory:       stacks(s.Inventory),
		Recipes:         make([]protocol.RecipeObs, 0, len(s.Recipes)),
		Agents:          make([]protocol.AgentObs, 0, len(s.Agents)),
		Cache:           make([]protocol.CacheObs, 0, len(s.Cache)),
		Selection:       s.Selection,
	}
	for _, r := range s.Recipes {
		ro := protocol.RecipeObs{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Kind:        string(r.Kind),
			Inputs:      stacks(r.Inputs),
			Outputs:     stacks(r.Outputs),
		}
		if r.Craft != nil {
			ro.IsAutonomous = r.Craft.IsAutonomous
			ro.AutonomousItemName = r.Craft.AutonomousItemName
		}
		if r.Command != nil {
			ro.TargetAgentID = r.Command.TargetAgentID
			ro.TargetRecipeID = r.Command.TargetRecipeID
			ro.IsPersistent = r.Command.IsPersistent
		}
		m.Recipes = append(m.Recipes, ro)
	}
	for _, a := range s.Agents {
		m.Agents = append(m.Agents, protocol.AgentObs{
			ID:               a.ID,
			Name:             a.Name,
			AssignedRecipeID: a.AssignedRecipeID,
			IsPersistent:     a.IsPersistent,
		})
	}
	for _, e := range s.Cache {
		m.Cache = append(m.Cache, protocol.CacheObs{Key: e.Key, RecipeID: e.RecipeID})
	}
	return m
}
