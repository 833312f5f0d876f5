package normalize

import (
	"regexp"
	"strconv"
)

var stockPattern = regexp.MustCompile(`([><+\-])?\s*(\d+)`)

// Stock is a parsed availability string such as "> 20 unidades".
type Stock struct {
	// Modifier is ">" (at least), "<" (fewer than) or empty.
	Modifier string `json:"modifier,omitempty"`
	Quantity int    `json:"quantity"`
	// Note is whatever text surrounded the number.
	Note string `json:"note,omitempty"`
}

// ParseStock extracts the first quantity from s. "+" reads as ">" and "-" as
// "<"; "< 1" and "< 0" mean out of stock.
func ParseStock(s string) Stock {
	m := stockPattern.FindStringSubmatchIndex(s)
	if m == nil {
		return Stock{}
	}
	note, _ := Text(s[:m[0]] + " " + s[m[1]:])
	quantity, err := strconv.Atoi(s[m[4]:m[5]])
	if err != nil {
		return Stock{Note: note}
	}
	modifier := ""
	if m[2] >= 0 {
		modifier = s[m[2]:m[3]]
	}
	switch modifier {
	case "+":
		modifier = ">"
	case "-":
		modifier = "<"
	}
	if quantity < 2 && modifier == "<" {
		return Stock{Note: note}
	}
	return Stock{Modifier: modifier, Quantity: quantity, Note: note}
}
