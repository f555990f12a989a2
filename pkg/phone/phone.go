// Package phone normalizes caller phone numbers and enumerates the
// representations other backends key customers by.
package phone

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ridewire/voice-engine/pkg/apperrors"
)

// MinDigits is the fewest digits a phone without a '+' form may have.
const MinDigits = 7

// extensionSuffix matches a trailing extension such as "ext 5", "x204" or
// "#12". The extension is not part of the number any backend keys on.
var extensionSuffix = regexp.MustCompile(`(?i)[\s,;]*(?:ext(?:ension)?\.?|x|#)\s*\d{1,6}\s*$`)

// Resolve normalizes a caller-supplied phone to the canonical '+digits' form.
//
// A bare 10-digit number is assumed to be North American and gets '+1'. An
// 11-digit number starting with 1 gets '+'. A leading "00" international
// dialing prefix is read as '+'. A trailing extension is dropped.
func Resolve(raw string) (string, error) {
	trimmed := StripExtension(strings.TrimSpace(raw))
	digits := digitsOnly(trimmed)

	if strings.HasPrefix(trimmed, "+") {
		if digits == "" {
			return "", fmt.Errorf("%w: %q has no digits", apperrors.ErrUnresolvablePhone, raw)
		}
		return "+" + digits, nil
	}

	if strings.HasPrefix(digits, "00") && len(digits)-2 >= MinDigits {
		return "+" + digits[2:], nil
	}

	switch {
	case len(digits) < MinDigits:
		return "", fmt.Errorf("%w: %q has %d digits", apperrors.ErrUnresolvablePhone, raw, len(digits))
	case len(digits) == 10:
		return "+1" + digits, nil
	default:
		return "+" + digits, nil
	}
}

// StripExtension removes a trailing extension from a phone string.
func StripExtension(raw string) string {
	return strings.TrimSpace(extensionSuffix.ReplaceAllString(raw, ""))
}

// EquivalentFormats returns the representations other systems are known to
// use for a canonical phone, in stable probe order. The canonical form is
// always first.
func EquivalentFormats(canonical string) []string {
	digits := digitsOnly(canonical)
	if digits == "" {
		return nil
	}

	var formats []string
	if len(digits) == 11 && digits[0] == '1' {
		national := digits[1:]
		formats = []string{
			"+1" + national,
			national,
			"1" + national,
			"001" + national,
		}
	} else {
		formats = []string{
			"+" + digits,
			digits,
			"00" + digits,
		}
	}
	return dedupe(formats)
}

// IsNANP reports whether a canonical phone is a North American number.
func IsNANP(canonical string) bool {
	return strings.HasPrefix(canonical, "+1") && len(digitsOnly(canonical)) == 11
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
