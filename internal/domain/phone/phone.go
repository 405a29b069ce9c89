// Package phone normalizes user-entered phone numbers into E.164 form.
package phone

import (
	"regexp"
	"strings"
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// Normalize strips formatting from raw input and prefixes the default country code
// (e.g. "+46") when the number is in national or international-access form.
// The result is not guaranteed to be valid; run it through Validate.
func Normalize(raw, defaultCountry string) string {
	digits := clean(raw)
	if digits == "" || strings.HasPrefix(digits, "+") {
		return digits
	}

	cc := strings.TrimPrefix(clean(defaultCountry), "+")
	switch {
	case strings.HasPrefix(digits, "00"):
		return "+" + digits[2:]
	case cc == "":
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+" + cc + digits[1:]
	case strings.HasPrefix(digits, cc):
		return "+" + digits
	default:
		return "+" + digits
	}
}

// Validate reports whether s is a plausible E.164 number.
func Validate(s string) bool {
	return e164.MatchString(s)
}

// Mask hides everything but the last four digits; used whenever a number is logged or echoed.
func Mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	prefix := ""
	body := s
	if strings.HasPrefix(s, "+") {
		prefix, body = "+", s[1:]
	}
	if len(body) <= 4 {
		return prefix + body
	}
	return prefix + strings.Repeat("*", len(body)-4) + body[len(body)-4:]
}

// clean keeps digits and a single leading '+'.
func clean(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
