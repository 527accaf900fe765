// Package theme holds the closed theme catalog and the keyword inference
// used when a calendar is created from captured quiz answers.
package theme

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Theme identifiers. The catalog is closed: an id outside this set would
// break downstream rendering, so inference must always land on a member.
const (
	Natal       = "natal"
	Aniversario = "aniversario"
	Namoro      = "namoro"
	Casamento   = "casamento"
	DiaDasMaes  = "diadasmaes"
	DiaDosPais  = "diadospais"
	Carnaval    = "carnaval"
	Pascoa      = "pascoa"
	Surpresa    = "surpresa"
)

// Default is the safe fallback theme, guaranteed to exist in the catalog.
const Default = Surpresa

var catalog = map[string]struct{}{
	Natal:       {},
	Aniversario: {},
	Namoro:      {},
	Casamento:   {},
	DiaDasMaes:  {},
	DiaDosPais:  {},
	Carnaval:    {},
	Pascoa:      {},
	Surpresa:    {},
}

// plusOnly themes require the paid tier.
var plusOnly = map[string]struct{}{
	Casamento: {},
}

// IsValid reports whether id is a catalog member.
func IsValid(id string) bool {
	_, ok := catalog[id]
	return ok
}

// IsPlus reports whether the theme is restricted to the paid tier.
func IsPlus(id string) bool {
	_, ok := plusOnly[id]
	return ok
}

// Keyword groups for inference, checked in priority order. Matching is
// case- and accent-insensitive substring search over the hint text.
var (
	partnerKeywords = []string{
		"namorad", "esposa", "esposo", "marido", "mulher", "parceir", "amor",
		"boyfriend", "girlfriend", "partner", "husband", "wife",
	}
	birthdayKeywords  = []string{"aniversario", "birthday", "niver"}
	christmasKeywords = []string{"natal", "christmas"}
	weddingKeywords   = []string{"casamento", "wedding"}
	motherKeywords    = []string{"mae", "mother", "mom", "mamae"}
	fatherKeywords    = []string{"pai", "father", "dad", "papai"}
)

// Infer maps free-form recipient and occasion hints to a catalog theme.
//
// The cascade is ordered: romantic-partner recipients win over everything,
// then occasion keywords (birthday, christmas, wedding), then family-day
// themes for mother/father recipients, and finally the default theme.
func Infer(recipientHint, occasionHint string) string {
	recipient := Normalize(recipientHint)
	occasion := Normalize(occasionHint)

	switch {
	case containsAny(recipient, partnerKeywords):
		return Namoro
	case containsAny(occasion, birthdayKeywords):
		return Aniversario
	case containsAny(occasion, christmasKeywords):
		return Natal
	case containsAny(occasion, weddingKeywords):
		return Casamento
	case containsAny(recipient, motherKeywords):
		return DiaDasMaes
	case containsAny(recipient, fatherKeywords):
		return DiaDosPais
	default:
		return Default
	}
}

// Normalize lowercases a hint and strips diacritics, so "Mãe" and "mae"
// compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.ToLower(stripped)
}

func containsAny(haystack string, needles []string) bool {
	if haystack == "" {
		return false
	}
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
