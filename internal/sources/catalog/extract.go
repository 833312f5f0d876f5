package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/pricefetch/pkg/normalize"
)

type extractor interface {
	// extract returns a string or a float64 from a json number.
	extract(f Field) (any, bool)
}

type htmlItem struct {
	sel *goquery.Selection
}

func (h htmlItem) extract(f Field) (any, bool) {
	sel := h.sel
	if f.Selector != "" {
		sel = sel.Find(f.Selector).First()
	}
	if sel.Length() == 0 {
		return nil, false
	}
	if f.Attr != "" {
		v, ok := sel.Attr(f.Attr)
		return v, ok
	}
	return sel.Text(), true
}

type jsonItem struct {
	value any
}

func (j jsonItem) extract(f Field) (any, bool) {
	v, ok := lookup(j.value, f.Path)
	if !ok || v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case string, float64:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}

// lookup walks a dotted path through decoded json; numeric segments index
// arrays.
func lookup(v any, path string) (any, bool) {
	if path == "" || path == "." {
		return v, true
	}
	for _, key := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

// convert applies the field's normalizer; values it rejects become nil.
func (s *Source) convert(kind string, raw any) any {
	if n, ok := raw.(float64); ok {
		switch kind {
		case KindPrice:
			if n > 0 {
				return n
			}
			return nil
		case KindInt, KindDecibels, KindNoise:
			if n > 0 {
				return int(n)
			}
			return nil
		}
		raw = strconv.FormatFloat(n, 'f', -1, 64)
	}
	text, _ := raw.(string)

	var (
		value any
		ok    bool
	)
	switch kind {
	case KindInt:
		value, ok = atoi(text)
	case KindPrice:
		value, ok = normalize.Price(text, s.cfg.PreferPeriod)
	case KindStock:
		value, ok = normalize.ParseStock(text), true
	case KindDelivery:
		value, ok = normalize.Delivery(s.clock, text)
	case KindBrand:
		value, ok = normalize.Brand(text)
	case KindDescription:
		value, ok = normalize.Description(text)
	case KindGrade:
		value, ok = normalize.Grade(text)
	case KindNoise:
		value, ok = normalize.Noise(text)
	case KindDecibels:
		value, ok = normalize.Decibels(text)
	case KindImage:
		value, _, ok = normalize.Image(s.BaseURL(), text)
	case KindPath:
		value, ok = normalize.Path(strings.TrimSpace(text))
	case KindURL:
		value, ok = normalize.Resolve(s.BaseURL(), text)
	default:
		value, ok = normalize.Text(text)
	}
	if !ok {
		return nil
	}
	return value
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}
