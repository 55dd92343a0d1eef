package helpers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxDescriptionLength is the longest remittance text a bank accepts.
const MaxDescriptionLength = 140

// Letters that do not decompose into an ASCII base letter.
var asciiReplacer = strings.NewReplacer(
	"Æ", "AE",
	"Ø", "O",
	"ß", "ss",
	"æ", "ae",
	"ø", "o",
)

var sepaChars = regexp.MustCompile(`^[a-zA-Z0-9\-?:().,'+ ]*$`)

// NormalizeToASCII replaces or removes every character outside of ASCII,
// keeping the base letter of accented characters.
func NormalizeToASCII(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return r > unicode.MaxASCII
		})),
	)

	out, _, err := transform.String(t, asciiReplacer.Replace(s))
	if err != nil {
		return ""
	}

	return out
}

// IsSEPAText reports whether s only uses the SEPA character set.
func IsSEPAText(s string) bool {
	return sepaChars.MatchString(s)
}

// SEPAText normalizes s to ASCII, drops characters outside of the SEPA
// character set and truncates the result to max bytes.
func SEPAText(s string, max int) string {
	s = NormalizeToASCII(s)

	var b strings.Builder
	for _, r := range s {
		if isSEPARune(r) {
			b.WriteRune(r)
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	if len(out) > max {
		out = strings.TrimRight(out[:max], " ")
	}

	return out
}

func isSEPARune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-?:().,'+ ", r)
}
