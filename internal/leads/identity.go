package leads

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadgen/internal/model"
)

// Normalize folds s for identity comparison: diacritics are stripped, text
// is lower-cased, and runs of punctuation or whitespace collapse to a
// single space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// IdentityKey is the business identity of a lead. Two candidates with the
// same key are the same business regardless of place id.
func IdentityKey(name, address string) string {
	return Normalize(name) + "|" + Normalize(address)
}

// CandidateKey is the identity key of c. A candidate with neither a usable
// name nor address is keyed by its place id instead.
func CandidateKey(c model.Candidate) string {
	key := IdentityKey(c.Name, c.Address)
	if key == "|" && c.PlaceID != "" {
		return "place:" + c.PlaceID
	}
	return key
}
