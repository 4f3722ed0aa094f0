package daycache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySessionsAreIndependent(t *testing.T) {
	reg := NewRegistry(func() *Cache { return New(DefaultConfig(), Deps{}) })
	defer reg.CloseAll()

	idA, a := reg.Create()
	idB, b := reg.Create()
	require.NotEqual(t, idA, idB)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, reg.Len())

	got, err := reg.Get(idA)
	require.NoError(t, err)
	assert.Same(t, a, got)

	a.SetDepot("1 Depot Rd")
	assert.Empty(t, b.Depot())
}

func TestRegistryClose(t *testing.T) {
	reg := NewRegistry(func() *Cache { return New(DefaultConfig(), Deps{}) })

	id, c := reg.Create()
	require.NoError(t, reg.Close(id))
	assert.ErrorIs(t, reg.Close(id), ErrSessionNotFound)

	_, err := reg.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, c.ObserveWindow(visibleDay("2026-03-10")))
}
