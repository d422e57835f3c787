// Package ledger holds the quantity rules for a material inventory.
//
// An Inventory never stores a non-positive quantity: any update that drives
// an entry to zero or below removes it.
package ledger

import (
	"math"
	"sort"

	"oraclecraft.ai/internal/sim/model"
)

type Inventory map[string]int

func New() Inventory { return Inventory{} }

// Round converts an oracle amount to an integer quantity, rounding half away
// from zero. Non-finite values round to 0.
func Round(amount float64) int {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	return int(math.Round(amount))
}

// totals folds repeated items together and drops non-positive amounts.
func totals(inputs []model.ItemAmount) map[string]int {
	if len(inputs) == 0 {
		return nil
	}
	out := make(map[string]int, len(inputs))
	for _, in := range inputs {
		if in.Item == "" || in.Amount <= 0 {
			continue
		}
		out[in.Item] += in.Amount
	}
	return out
}

func (inv Inventory) HasSufficient(inputs []model.ItemAmount) bool {
	for item, want := range totals(inputs) {
		if inv[item] < want {
			return false
		}
	}
	return true
}

// Consume decrements every listed item or, when any is short, changes nothing.
func (inv Inventory) Consume(inputs []model.ItemAmount) bool {
	want := totals(inputs)
	for item, c := range want {
		if inv[item] < c {
			return false
		}
	}
	for item, c := range want {
		inv.add(item, -c)
	}
	return true
}

// Credit adds a rounded amount. A negative amount debits; the entry is removed
// when the result is not positive.
func (inv Inventory) Credit(item string, amount float64) {
	if item == "" {
		return
	}
	n := Round(amount)
	if n == 0 {
		return
	}
	inv.add(item, n)
}

func (inv Inventory) add(item string, n int) {
	v := inv[item] + n
	if v <= 0 {
		delete(inv, item)
		return
	}
	inv[item] = v
}

func (inv Inventory) Quantity(item string) int { return inv[item] }

func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for k, v := range inv {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

// Stacks returns a sorted copy-out of the inventory.
func (inv Inventory) Stacks() []model.ItemAmount {
	keys := make([]string, 0, len(inv))
	for k, v := range inv {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]model.ItemAmount, 0, len(keys))
	for _, k := range keys {
		out = append(out, model.ItemAmount{Item: k, Amount: inv[k]})
	}
	return out
}
