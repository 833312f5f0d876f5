package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	commaPrice  = `(?P<comma>\d+(\.\d{3})*(,\d{2})?)(€|£|\$|§)?`
	periodPrice = `(?P<period>\d+(,\d{3})*(\.\d{2})?)(€|£|\$|§)?`
)

var (
	preferComma  = regexp.MustCompile(commaPrice + `|` + periodPrice)
	preferPeriod = regexp.MustCompile(periodPrice + `|` + commaPrice)
)

// Price parses a shop price. By default "1.234,56 €" style (comma decimals)
// is tried first; preferPeriod tries "1,234.56" first. Zero is not a price.
func Price(s string, preferPeriodDecimals bool) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	re := preferComma
	if preferPeriodDecimals {
		re = preferPeriod
	}
	m := re.FindStringSubmatchIndex(s)
	if m == nil {
		return 0, false
	}
	if v, ok := group(re, s, m, "comma"); ok {
		return parsePositive(strings.ReplaceAll(strings.ReplaceAll(v, ".", ""), ",", "."))
	}
	if v, ok := group(re, s, m, "period"); ok {
		return parsePositive(strings.ReplaceAll(v, ",", ""))
	}
	return 0, false
}

func group(re *regexp.Regexp, s string, m []int, name string) (string, bool) {
	i := re.SubexpIndex(name)
	if i < 0 || m[2*i] < 0 {
		return "", false
	}
	return s[m[2*i]:m[2*i+1]], true
}

func parsePositive(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
