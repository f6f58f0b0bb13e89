package identity

import "testing"

func TestNormalizePhoneStripsFormatting(t *testing.T) {
	got := NormalizePhone("+44 (0) 7700-900123")
	if got != "+4407700900123" {
		t.Fatalf("unexpected normalized number: %s", got)
	}
}

func TestNormalizePhoneAddsPlusAndStripsLeadingZeros(t *testing.T) {
	got := NormalizePhone("0044 7700 900123")
	if got != "+447700900123" {
		t.Fatalf("unexpected normalized number: %s", got)
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	once := NormalizePhone("06 12 34 56 78")
	twice := NormalizePhone(once)
	if once != twice {
		t.Fatalf("normalization not idempotent: %s vs %s", once, twice)
	}
}

func TestAccountID(t *testing.T) {
	if got := AccountID("+31 6 1234 5678"); got != "user_+31612345678" {
		t.Fatalf("unexpected account id: %s", got)
	}
}
