package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDecomp(t *testing.T, name string, n, parts int) *Decomposition {
	t.Helper()
	d, err := BlockDecompose(name, []int{n}, []int{parts}, []int{1}, nil)
	require.NoError(t, err)
	return d
}

func TestRouteKeyDeterminism(t *testing.T) {
	a := testDecomp(t, "a", 16, 4)
	b := testDecomp(t, "a", 16, 4)

	k1, err := RouteKey("halo", KindR8, nil, a)
	require.NoError(t, err)
	k2, err := RouteKey("halo", KindR8, nil, b)
	require.NoError(t, err)

	assert.Equal(t, k1, k2, "RouteKey must be deterministic over equal layouts")
	assert.Len(t, k1, 64, "SHA-256 hex is 64 characters")
}

func TestRouteKeyChangesWithInput(t *testing.T) {
	a := testDecomp(t, "a", 16, 4)
	c := testDecomp(t, "a", 16, 2)

	base := MustRouteKey("halo", KindR8, nil, a)
	assert.NotEqual(t, base, MustRouteKey("redist", KindR8, nil, a), "different op")
	assert.NotEqual(t, base, MustRouteKey("halo", KindR4, nil, a), "different kind")
	assert.NotEqual(t, base, MustRouteKey("halo", KindR8, nil, c), "different decomposition")
	assert.NotEqual(t, base, MustRouteKey("halo", KindR8, map[string]any{"rank_trans": []int{0}}, a), "different params")
}

func TestLayoutHashDistinguishesTypes(t *testing.T) {
	d := testDecomp(t, "v", 6, 2)
	l := VectorDecompose("v", []int{3, 3})

	hd, err := LayoutHash(d)
	require.NoError(t, err)
	hl, err := LayoutHash(l)
	require.NoError(t, err)
	assert.NotEqual(t, hd, hl)
}
