package identity

import "strings"

const accountPrefix = "user_"

// NormalizePhone reduces a dialable phone number to the canonical form used
// as the mailbox key: formatting characters removed, leading zeros replaced
// by a single "+".
func NormalizePhone(number string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(number))

	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	return "+" + strings.TrimLeft(cleaned, "0")
}

// AccountID derives the stable account identifier for a phone number.
func AccountID(number string) string {
	return accountPrefix + NormalizePhone(number)
}
