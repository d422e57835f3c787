package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a named JSON Schema document. Document is what backends embed in
// the prompt; the compiled form validates replies.
type Schema struct {
	Name     string
	Document json.RawMessage

	compiled *jsonschema.Schema
}

func CompileSchema(name string, doc []byte) (*Schema, error) {
	url := "mem://oraclecraft/" + name + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return &Schema{Name: name, Document: json.RawMessage(doc), compiled: s}, nil
}

func mustSchema(name, doc string) *Schema {
	s, err := CompileSchema(name, []byte(doc))
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded JSON value (as produced by json.Unmarshal into any).
func (s *Schema) Validate(v any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	return s.compiled.Validate(v)
}

// Amounts are declared as numbers so fractional replies survive validation
// and get rounded by the engine.
const amountListSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "item":   {"type": "string"},
      "amount": {"type": "number", "description": "quantity (always an integer)"}
    },
    "required": ["item", "amount"]
  }
}`

var CraftSchema = mustSchema("craft", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "success":      {"type": "boolean"},
    "itemName":     {"type": "string", "description": "name of the produced item; empty on failure"},
    "description":  {"type": "string", "description": "narrative outcome shown to the player"},
    "inputs":       `+amountListSchema+`,
    "outputs":      `+amountListSchema+`,
    "isAutonomous": {"type": "boolean", "description": "true when the produced item can act on its own"}
  },
  "required": ["success", "description", "inputs", "outputs", "isAutonomous"]
}`)

var ExploreSchema = mustSchema("explore", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "success":     {"type": "boolean"},
    "description": {"type": "string", "description": "narrative outcome shown to the player"},
    "outputs":     `+amountListSchema+`
  },
  "required": ["success", "description", "outputs"]
}`)
