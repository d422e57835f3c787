package protocol_test

import (
	"encoding/json"
	"testing"

	"oraclecraft.ai/internal/protocol"
)

func TestValidateIntent(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		ok   bool
	}{
		{"craft", `{"type":"INTENT","intent_id":"i1","intent":"CRAFT","materials":["wood"],"action":"whittle"}`, true},
		{"explore", `{"type":"INTENT","intent_id":"i2","intent":"EXPLORE","location":"cave"}`, true},
		{"command", `{"type":"INTENT","intent_id":"i3","intent":"COMMAND","agent_id":"AI-001","recipe_id":"R-001","persistent":true}`, true},
		{"execute missing recipe", `{"type":"INTENT","intent_id":"i4","intent":"EXECUTE"}`, false},
		{"unknown intent", `{"type":"INTENT","intent_id":"i5","intent":"DANCE"}`, false},
		{"missing id", `{"type":"INTENT","intent":"EXPLORE","location":"cave"}`, false},
		{"toggle needs item", `{"type":"INTENT","intent_id":"i6","intent":"TOGGLE_MATERIAL"}`, false},
	}
	for _, c := range cases {
		var v any
		if err := json.Unmarshal([]byte(c.doc), &v); err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		err := protocol.ValidateIntent(v)
		if (err == nil) != c.ok {
			t.Fatalf("%s: err=%v want ok=%v", c.name, err, c.ok)
		}
	}
}
