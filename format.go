package fel

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Format validators are pure predicates. Failure returns false, never an
// error.

var (
	nitPattern = regexp.MustCompile(`^\d{1,12}[0-9K]$`)
	cuiPattern = regexp.MustCompile(`^\d{13}$`)
)

// MaxMonetaryValue bounds every monetary amount on a document.
var MaxMonetaryValue = decimal.RequireFromString("999999999999.99")

// ValidNIT reports whether nit is a well-formed NIT with a correct mod-11
// check digit. The literal "CF" (consumidor final) is accepted as a sentinel.
func ValidNIT(nit string) bool {
	if nit == "CF" {
		return true
	}
	if !nitPattern.MatchString(nit) || len(nit) < 2 {
		return false
	}
	body := nit[:len(nit)-1]
	sum := 0
	mult := len(body) + 1
	for _, d := range body {
		sum += int(d-'0') * mult
		mult--
	}
	var want byte
	switch r := sum % 11; r {
	case 0:
		want = '0'
	case 1:
		want = 'K'
	default:
		want = byte('0' + 11 - r)
	}
	return nit[len(nit)-1] == want
}

// ValidCUI reports whether cui is a 13-digit CUI whose 9th digit matches the
// RENAP check algorithm over the first eight digits.
func ValidCUI(cui string) bool {
	if !cuiPattern.MatchString(cui) {
		return false
	}
	sum := 0
	for i := 0; i < 8; i++ {
		sum += int(cui[i]-'0') * (i + 2)
	}
	check := (sum * 10) % 11
	if check == 10 {
		check = 0
	}
	return int(cui[8]-'0') == check
}

// ValidUUIDv4 reports whether s is a canonical hyphenated UUID with version
// 4 and an RFC 4122 variant. Matching is case-insensitive.
func ValidUUIDv4(s string) bool {
	if len(s) != 36 || strings.Count(s, "-") != 4 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() == 4 && u.Variant() == uuid.RFC4122
}

// InMonetaryRange reports whether v lies in [0, MaxMonetaryValue].
func InMonetaryRange(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(MaxMonetaryValue)
}

// Round2 rounds to two decimal places, half up.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// WithinTolerance reports whether a and b differ by at most tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

var comparableTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeComparable lowercases s, trims it, collapses inner whitespace and
// strips diacritics, so names from the RTU compare against names typed on
// documents.
func NormalizeComparable(s string) string {
	out, _, err := transform.String(comparableTransform, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}
