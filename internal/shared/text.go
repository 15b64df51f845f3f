package shared

import "strings"

// turkishFold maps the Turkish letters left after strings.ToLower to their
// ASCII base letter. ToLower turns "İ" into "i" plus U+0307, so the
// combining dot is dropped.
var turkishFold = strings.NewReplacer(
	"ı", "i", "\u0307", "",
	"ç", "c", "ğ", "g", "ö", "o", "ş", "s", "ü", "u",
)

// Fold returns the canonical matching form of s: Unicode lower case with
// Turkish letters reduced to their ASCII base. "SISTEM", "SİSTEM" and
// "sıstem" all fold to "sistem", and "ROLUNU" matches "rolünü".
func Fold(s string) string {
	return turkishFold.Replace(strings.ToLower(s))
}

// ContainsFold reports whether needle occurs in haystack once both are folded.
func ContainsFold(haystack, needle string) bool {
	needle = Fold(needle)
	if needle == "" {
		return false
	}
	return strings.Contains(Fold(haystack), needle)
}

// ContainsAnyFold returns the first needle found in haystack by ContainsFold.
func ContainsAnyFold(haystack string, needles []string) (string, bool) {
	folded := Fold(haystack)
	for _, n := range needles {
		if fn := Fold(n); fn != "" && strings.Contains(folded, fn) {
			return n, true
		}
	}
	return "", false
}
