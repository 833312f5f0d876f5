package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewQueryAppliesDefaultQuantity(t *testing.T) {
	t.Parallel()

	q, err := NewQuery("tire", 0)
	require.NoError(t, err)
	require.Equal(t, Query{Term: "tire", Quantity: DefaultQuantity}, q)

	q, err = NewQuery("tire", 2)
	require.NoError(t, err)
	require.Equal(t, 2, q.Quantity)
}

func TestNewQueryRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	_, err := NewQuery("  ", 1)
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = NewQuery("tire", -1)
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		quantity string
		want     int
		wantErr  bool
	}{
		{name: "empty uses default", quantity: "", want: DefaultQuantity},
		{name: "digits", quantity: "12", want: 12},
		{name: "padded digits", quantity: " 3 ", want: 3},
		{name: "zero is unset", quantity: "0", want: DefaultQuantity},
		{name: "negative", quantity: "-1", wantErr: true},
		{name: "decimal", quantity: "1.5", wantErr: true},
		{name: "letters", quantity: "two", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q, err := ParseQuery("tire", tt.quantity)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidQuery)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, q.Quantity)
		})
	}
}

func TestQueryString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tire:2", Query{Term: "tire", Quantity: 2}.String())
}
