package oracle

import (
	"fmt"
	"math"
	"strings"
)

// Amount is an oracle-reported quantity. The oracle is asked for integers but
// may return fractions; the engine rounds on application.
type Amount struct {
	Item   string  `json:"item"`
	Amount float64 `json:"amount"`
}

// Judgment is the structured result for a craft or explore request. Explore
// judgments leave ItemName, Inputs and IsAutonomous empty.
type Judgment struct {
	Success      bool     `json:"success"`
	ItemName     string   `json:"itemName,omitempty"`
	Description  string   `json:"description"`
	Inputs       []Amount `json:"inputs,omitempty"`
	Outputs      []Amount `json:"outputs,omitempty"`
	IsAutonomous bool     `json:"isAutonomous,omitempty"`
}

// Check reports structural problems that schema validation cannot catch, such
// as blank item names or non-finite amounts.
func (j Judgment) Check() error {
	for i, in := range j.Inputs {
		if strings.TrimSpace(in.Item) == "" {
			return fmt.Errorf("inputs[%d]: empty item", i)
		}
		if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount < 0 {
			return fmt.Errorf("inputs[%d]: bad amount %v", i, in.Amount)
		}
	}
	for i, out := range j.Outputs {
		if strings.TrimSpace(out.Item) == "" {
			return fmt.Errorf("outputs[%d]: empty item", i)
		}
		if math.IsNaN(out.Amount) || math.IsInf(out.Amount, 0) {
			return fmt.Errorf("outputs[%d]: bad amount %v", i, out.Amount)
		}
	}
	return nil
}

func (j Judgment) Clone() Judgment {
	out := j
	out.Inputs = append([]Amount(nil), j.Inputs...)
	out.Outputs = append([]Amount(nil), j.Outputs...)
	return out
}
