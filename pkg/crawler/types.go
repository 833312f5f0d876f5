package crawler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultQuantity is the number of records requested when a query leaves the
// quantity unset.
const DefaultQuantity = 4

// ErrInvalidQuery is returned when a query fails validation.
var ErrInvalidQuery = errors.New("invalid query")

// Query is one search request handed to a Source.
type Query struct {
	// Term is the search term; it must not be blank.
	Term string `json:"term" mapstructure:"term"`
	// Quantity caps the number of records a source returns. Zero means unset.
	Quantity int `json:"quantity" mapstructure:"quantity"`
}

// NewQuery builds a normalized query from a term and an integer quantity.
func NewQuery(term string, quantity int) (Query, error) {
	return Query{Term: term, Quantity: quantity}.Normalize()
}

// ParseQuery builds a normalized query from string input. An empty quantity
// selects DefaultQuantity; anything else must be a non-negative integer.
// "0" counts as unset and also selects DefaultQuantity, since a source asked
// for zero records has nothing to fetch.
func ParseQuery(term, quantity string) (Query, error) {
	quantity = strings.TrimSpace(quantity)
	if quantity == "" {
		return NewQuery(term, 0)
	}
	for _, r := range quantity {
		if r < '0' || r > '9' {
			return Query{}, fmt.Errorf("%w: quantity %q must be an integer", ErrInvalidQuery, quantity)
		}
	}
	n, err := strconv.Atoi(quantity)
	if err != nil {
		return Query{}, fmt.Errorf("%w: quantity %q: %w", ErrInvalidQuery, quantity, err)
	}
	return NewQuery(term, n)
}

// Normalize validates the query and applies defaults.
func (q Query) Normalize() (Query, error) {
	if strings.TrimSpace(q.Term) == "" {
		return Query{}, fmt.Errorf("%w: term is required", ErrInvalidQuery)
	}
	switch {
	case q.Quantity < 0:
		return Query{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidQuery, q.Quantity)
	case q.Quantity == 0:
		q.Quantity = DefaultQuantity
	}
	return q, nil
}

func (q Query) String() string {
	return fmt.Sprintf("%s:%d", q.Term, q.Quantity)
}

// Record is one structured item produced by a Source. Its keys are defined by
// the source; the orchestrator treats it as opaque.
type Record map[string]any
