package pricing

import "testing"

func TestCostFreeTierShortMessage(t *testing.T) {
	table := NewTable(nil)
	if got := table.Cost("happy", "a b c"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestCostChargesWordsBeyondAllowance(t *testing.T) {
	table := NewTable(nil)
	if got := table.Cost("unicorn", "a b c d e f g"); got != 22 {
		t.Fatalf("expected 22 (base 20 + 2 extra words), got %d", got)
	}
}

func TestCostEmptyMessageIsBaseOnly(t *testing.T) {
	table := NewTable(nil)
	if got := table.Cost("golden", ""); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
}

func TestCostWhitespaceOnlyMessage(t *testing.T) {
	table := NewTable(nil)
	if got := table.Cost("golden", "   \t  "); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
}

func TestUnknownKindPricesAtZero(t *testing.T) {
	table := NewTable(nil)
	if table.Known("mystery") {
		t.Fatal("mystery should not be a known kind")
	}
	if got := table.Cost("mystery", "one two"); got != 0 {
		t.Fatalf("expected 0 for unknown kind, got %d", got)
	}
}

func TestCustomTableOverridesDefaults(t *testing.T) {
	table := NewTable(map[string]int64{"happy": 5})
	if got := table.Base("happy"); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if table.Known("golden") {
		t.Fatal("custom table should not inherit defaults")
	}
}
