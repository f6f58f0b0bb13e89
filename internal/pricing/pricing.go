package pricing

import "strings"

// Free word allowance per message; each word beyond it costs one coin.
const freeWords = 5

// Table maps item kinds to their base coin cost.
type Table struct {
	base map[string]int64
}

// DefaultBaseCosts returns the built-in item price tiers.
func DefaultBaseCosts() map[string]int64 {
	return map[string]int64{
		"happy":     0,
		"angry":     0,
		"unicorn":   20,
		"exploding": 20,
		"golden":    25,
	}
}

// NewTable builds a pricing table from kind -> base cost entries.
// A nil or empty map falls back to the default tiers.
func NewTable(base map[string]int64) *Table {
	if len(base) == 0 {
		base = DefaultBaseCosts()
	}
	copied := make(map[string]int64, len(base))
	for kind, cost := range base {
		copied[kind] = cost
	}
	return &Table{base: copied}
}

// Base returns the base cost for an item kind. Unknown kinds price at zero:
// fail-open, matching the historical behavior of the pricing table.
func (t *Table) Base(kind string) int64 {
	return t.base[kind]
}

// Known reports whether the kind has an explicit price tier.
func (t *Table) Known(kind string) bool {
	_, ok := t.base[kind]
	return ok
}

// Cost computes the total coin cost for delivering an item: base tier plus
// one coin per message word beyond the free allowance.
func (t *Table) Cost(kind, message string) int64 {
	extra := int64(wordCount(message)) - freeWords
	if extra < 0 {
		extra = 0
	}
	return t.Base(kind) + extra
}

func wordCount(message string) int {
	return len(strings.Fields(message))
}
