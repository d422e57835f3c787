package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

const CraftSystemPrompt = `You are the "laws of the world" for a text-based sandbox game.
Judge the result of a craft from the player's materials and action, replying with strict JSON.
- On success: return a creative but logical result (produced item, description, consumed materials).
- If the produced item could plausibly act on its own (an autonomous robot, an AI core, ...), set "isAutonomous": true.
- On failure: return "success": false and a description that hints the player toward a better attempt.
- For consumed materials ("inputs"), use the player's list as given or correct it to something more logical (e.g. 1 wooden stick and 1 sharp stone).
- Every "amount" must be an INTEGER.`

const ExploreSystemPrompt = `You are the "laws of the world" for a text-based sandbox game.
Judge what the player finds when exploring the given location, replying with strict JSON.
- On success: return logical items (one or more) that could be found there.
- On failure: return "success": false and a description that hints the player (e.g. "too dangerous, found nothing").
- Every "amount" must be an INTEGER.`

func quoteList(xs []string) string {
	parts := make([]string, 0, len(xs))
	for _, x := range xs {
		parts = append(parts, fmt.Sprintf("%q", x))
	}
	return strings.Join(parts, ", ")
}

func CraftQuery(materials []string, action string) string {
	return fmt.Sprintf("craft judgment: materials=[%s], action=%q", quoteList(materials), action)
}

func ExploreQuery(location string) string {
	return fmt.Sprintf("explore judgment: location=%q", location)
}

// BuildPrompt embeds the schema into a single JSON-only prompt.
func BuildPrompt(systemInstruction, userQuery string, schema json.RawMessage) string {
	var pretty strings.Builder
	var v any
	if err := json.Unmarshal(schema, &v); err == nil {
		b, _ := json.MarshalIndent(v, "", "  ")
		pretty.Write(b)
	} else {
		pretty.Write(schema)
	}
	return fmt.Sprintf("%s\n\nUser Query: %q\n\nYour response MUST be a single, valid JSON object that conforms to the following schema. Do not output any text, explanation, or code block markers outside of the JSON object.\n\nSchema:\n%s",
		systemInstruction, userQuery, pretty.String())
}
