package session

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// ErrMissingField is returned by Fill when a required field is absent.
var ErrMissingField = errors.New("form field missing")

// Fill copies the value attribute of each element named like a payload key
// into payload, typically to carry CSRF tokens from a login page. A nil
// payload value marks the field as required; other values are defaults kept
// when the page has no such field.
func Fill(doc *goquery.Document, payload map[string]*string) (map[string]string, error) {
	if doc == nil {
		return nil, ErrNotHTML
	}
	out := make(map[string]string, len(payload))
	for key, def := range payload {
		field := doc.Find(fmt.Sprintf("[name=%q]", key)).First()
		if field.Length() == 0 {
			if def == nil {
				return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
			}
			out[key] = *def
			continue
		}
		if value, ok := field.Attr("value"); ok {
			out[key] = value
		} else if def != nil {
			out[key] = *def
		}
	}
	return out, nil
}
