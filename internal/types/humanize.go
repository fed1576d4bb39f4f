package types

import "strings"

// HumanizeKey inserts a space before every internal ASCII upper-case letter,
// so "keywordMatch" becomes "keyword Match". Other scripts are left whole.
func HumanizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, r := range key {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
