package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewRawIDUnique(t *testing.T) {
	t.Parallel()

	gen := New()
	seen := make(map[goUUID.UUID]struct{})
	for range 256 {
		id, err := gen.NewRawID()
		require.NoError(t, err)
		require.Equal(t, goUUID.Version(7), id.Version())
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestGeneratorNewIDParses(t *testing.T) {
	t.Parallel()

	id, err := New().NewID()
	require.NoError(t, err)
	_, err = goUUID.Parse(id)
	require.NoError(t, err)
}
