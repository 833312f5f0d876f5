package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock supplies "now" for relative dates.
type Clock interface {
	Now() time.Time
}

var (
	startOf      = regexp.MustCompile(`inicio\s+de\s+`)
	dayOfMonth   = regexp.MustCompile(`\b([1-2][0-9]|0?[1-9]|3[0-1])\s+de\s+([a-z]+)`)
	relativeDay  = regexp.MustCompile(`(depois\s+de\s+)?(amanha|hoje)(\s+de\s+(manha|tarde))?`)
	numericDate  = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})(?:[/.-](\d{2,4}))?\b`)
	monthsByName = map[string]time.Month{
		"janeiro": time.January, "jan": time.January,
		"fevereiro": time.February, "fev": time.February,
		"marco": time.March, "mar": time.March,
		"abril": time.April, "abr": time.April,
		"maio": time.May, "mai": time.May,
		"junho": time.June, "jun": time.June,
		"julho": time.July, "jul": time.July,
		"agosto": time.August, "ago": time.August,
		"setembro": time.September, "set": time.September,
		"outubro": time.October, "out": time.October,
		"novembro": time.November, "nov": time.November,
		"dezembro": time.December, "dez": time.December,
	}
)

// Delivery parses a Portuguese delivery estimate ("amanhã de tarde",
// "inicio de março", "12 de maio", "12/05") into a date in now's location.
// Dates without a year resolve to the next occurrence on or after today.
// "manhã" and "tarde" set the hour to 10 and 16; everything else is midnight.
func Delivery(clk Clock, s string) (time.Time, bool) {
	text, ok := Text(strings.ToLower(Fold(s)))
	if !ok {
		return time.Time{}, false
	}
	now := clk.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	text = startOf.ReplaceAllString(text, "1 de ")

	if m := dayOfMonth.FindStringSubmatch(text); m != nil {
		month, ok := monthsByName[m[2]]
		if !ok {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(m[1])
		return future(today, month, day)
	}

	if m := relativeDay.FindStringSubmatch(text); m != nil {
		date := today
		if m[2] == "amanha" {
			date = date.AddDate(0, 0, 1)
		}
		if m[1] != "" {
			date = date.AddDate(0, 0, 1)
		}
		switch m[4] {
		case "manha":
			date = date.Add(10 * time.Hour)
		case "tarde":
			date = date.Add(16 * time.Hour)
		}
		return date, true
	}

	if m := numericDate.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		if mon < 1 || mon > 12 {
			return time.Time{}, false
		}
		if m[3] == "" {
			return future(today, time.Month(mon), day)
		}
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		return exact(year, time.Month(mon), day, today.Location())
	}
	return time.Time{}, false
}

func future(today time.Time, month time.Month, day int) (time.Time, bool) {
	// Four years covers 29 February.
	for y := today.Year(); y <= today.Year()+4; y++ {
		if date, ok := exact(y, month, day, today.Location()); ok && !date.Before(today) {
			return date, true
		}
	}
	return time.Time{}, false
}

// exact rejects days that time.Date would roll into the next month.
func exact(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if day < 1 {
		return time.Time{}, false
	}
	date := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if date.Month() != month || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}
