// Package normalize cleans up the free-text fields scraped from tyre shops:
// prices, stock levels, delivery dates, brands and EU label grades.
//
// Every parser returns ok=false when the input carries no usable value.
package normalize

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parenthesized = regexp.MustCompile(`\(.*?\)`)
	trailingGrade = regexp.MustCompile(`[A-Z]$`)
	twoDigits     = regexp.MustCompile(`[0-9]{2}`)
	noiseLetter   = regexp.MustCompile(`[A-C]`)
	noiseDigit    = regexp.MustCompile(`[1-3]`)
)

// Fold decomposes s and drops everything outside ASCII, so "Amanhã" becomes
// "Amanha".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Text trims s and collapses inner whitespace runs to one space.
func Text(s string) (string, bool) {
	out := strings.Join(strings.Fields(s), " ")
	return out, out != ""
}

// Brand strips the first parenthesized remark and capitalizes each word:
// "MICHELIN (EU)" becomes "Michelin".
func Brand(s string) (string, bool) {
	if loc := parenthesized.FindStringIndex(s); loc != nil {
		s = s[:loc[0]] + " " + s[loc[1]:]
	}
	text, ok := Text(s)
	if !ok {
		return "", false
	}
	words := strings.Split(text, " ")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " "), true
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

// Description upper-cases a product description.
func Description(s string) (string, bool) {
	text, ok := Text(s)
	if !ok {
		return "", false
	}
	return strings.ToUpper(text), true
}

// Grade extracts the trailing EU label letter used for fuel efficiency and
// wet grip ("Classe b" gives "B").
func Grade(s string) (string, bool) {
	text, ok := Text(s)
	if !ok {
		return "", false
	}
	m := trailingGrade.FindString(strings.ToUpper(text))
	return m, m != ""
}

// Decibels extracts the first two-digit number as a rolling noise level.
func Decibels(s string) (int, bool) {
	text, ok := Text(s)
	if !ok {
		return 0, false
	}
	m := twoDigits.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Noise maps an EU noise class to 1..3. Letters A–C take precedence over
// digits 1–3.
func Noise(s string) (int, bool) {
	text, ok := Text(s)
	if !ok {
		return 0, false
	}
	text = strings.ToUpper(text)
	if m := noiseLetter.FindString(text); m != "" {
		return int(m[0]-'A') + 1, true
	}
	if m := noiseDigit.FindString(text); m != "" {
		return int(m[0] - '0'), true
	}
	return 0, false
}

// Path returns the file name of p without directory or extension.
func Path(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	name := path.Base(p)
	if ext := path.Ext(name); ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return name, name != "" && name != "." && name != "/"
}
