package protocol

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// IntentSchema is the wire contract for INTENT messages. Per-kind required
// fields are enforced here so the game only sees well-formed intents.
const IntentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "intent_id", "intent"],
  "properties": {
    "type":       {"const": "INTENT"},
    "intent_id":  {"type": "string", "minLength": 1, "maxLength": 64},
    "intent":     {"enum": ["TOGGLE_MATERIAL", "CRAFT", "EXPLORE", "COMMAND", "EXECUTE"]},
    "item":       {"type": "string", "maxLength": 200},
    "materials":  {"type": "array", "items": {"type": "string", "maxLength": 200}, "maxItems": 32},
    "action":     {"type": "string", "maxLength": 500},
    "location":   {"type": "string", "maxLength": 500},
    "agent_id":   {"type": "string"},
    "recipe_id":  {"type": "string"},
    "persistent": {"type": "boolean"}
  },
  "allOf": [
    {"if": {"properties": {"intent": {"const": "TOGGLE_MATERIAL"}}}, "then": {"required": ["item"]}},
    {"if": {"properties": {"intent": {"const": "CRAFT"}}}, "then": {"required": ["action"]}},
    {"if": {"properties": {"intent": {"const": "EXPLORE"}}}, "then": {"required": ["location"]}},
    {"if": {"properties": {"intent": {"const": "COMMAND"}}}, "then": {"required": ["agent_id", "recipe_id"]}},
    {"if": {"properties": {"intent": {"const": "EXECUTE"}}}, "then": {"required": ["recipe_id"]}}
  ]
}`

var intentSchema = func() *jsonschema.Schema {
	const url = "mem://protocol/intent.schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader([]byte(IntentSchema))); err != nil {
		panic(err)
	}
	return c.MustCompile(url)
}()

// ValidateIntent checks a decoded INTENT message (json.Unmarshal into any).
func ValidateIntent(v any) error {
	if err := intentSchema.Validate(v); err != nil {
		return fmt.Errorf("intent: %w", err)
	}
	return nil
}
