package dedupe

import (
	"testing"

	"imagededup/config"
	"imagededup/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fpRecord(path string, kind types.FingerprintKind, fp uint64) *types.ImageRecord {
	r := &types.ImageRecord{Path: path}
	r.SetFingerprint(kind, types.Fingerprint(fp))
	return r
}

func TestCatalogueOrder(t *testing.T) {
	layers := Catalogue(config.Default().Thresholds)
	require.Len(t, layers, 5)

	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.Name
	}
	assert.Equal(t, []string{"EXACT", "NEAR-EXACT", "STRUCTURAL", "WAVELET", "SIMILAR"}, names)

	assert.True(t, layers[0].Exact)
	for _, l := range layers[1:] {
		assert.False(t, l.Exact, l.Name)
		assert.NotEmpty(t, l.Kind, l.Name)
	}

	// Configured thresholds land on their layers
	assert.Equal(t, 2, layers[1].Threshold)
	assert.Equal(t, 6, layers[2].Threshold)
	assert.Equal(t, 6, layers[3].Threshold)
	assert.Equal(t, 10, layers[4].Threshold)
}

func TestDetectExact(t *testing.T) {
	layer := Layer{Name: "EXACT", Exact: true}

	pool := []*types.ImageRecord{
		{Path: "/d/c.png", ContentHash: "h1"},
		{Path: "/d/a.png", ContentHash: "h1"},
		{Path: "/d/b.png", ContentHash: "h2"},
		{Path: "/d/d.png", ContentHash: "h3"},
		{Path: "/d/e.png", ContentHash: "h3"},
	}

	groups := layer.Detect(pool)
	require.Len(t, groups, 2)

	// Groups and members come back in path order
	assert.Equal(t, "/d/a.png", groups[0].Members[0].Path)
	assert.Equal(t, "/d/c.png", groups[0].Members[1].Path)
	assert.Equal(t, "/d/d.png", groups[1].Members[0].Path)
	assert.Equal(t, "EXACT", groups[0].Layer)
}

func TestDetectExactSkipsUnhashed(t *testing.T) {
	layer := Layer{Name: "EXACT", Exact: true}

	pool := []*types.ImageRecord{
		{Path: "/d/a.png", ContentHash: "h1"},
		{Path: "/d/b.png"},
		{Path: "/d/c.png", ContentHash: "h1", HashFailed: true},
	}

	assert.Empty(t, layer.Detect(pool))
}

func TestDetectPerceptualThresholdBoundary(t *testing.T) {
	kind := types.FingerprintWavelet
	layer := Layer{Name: "WAVELET", Kind: kind, Threshold: 6}

	// 0b111111 differs from 0 by exactly six bits
	atThreshold := []*types.ImageRecord{
		fpRecord("/d/a.png", kind, 0),
		fpRecord("/d/b.png", kind, 0x3F),
	}
	groups := layer.Detect(atThreshold)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 2)

	// One more differing bit falls outside the layer
	beyond := []*types.ImageRecord{
		fpRecord("/d/a.png", kind, 0),
		fpRecord("/d/b.png", kind, 0x7F),
	}
	assert.Empty(t, layer.Detect(beyond))
}

func TestDetectPerceptualTransitiveChain(t *testing.T) {
	kind := types.FingerprintAverage
	layer := Layer{Name: "SIMILAR", Kind: kind, Threshold: 2}

	// a-b and b-c are within the threshold, a-c is not; connectivity
	// still pulls all three into one group
	pool := []*types.ImageRecord{
		fpRecord("/d/a.png", kind, 0b0000),
		fpRecord("/d/b.png", kind, 0b0011),
		fpRecord("/d/c.png", kind, 0b1111),
	}

	groups := layer.Detect(pool)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 3)
}

func TestDetectPerceptualSeparateComponents(t *testing.T) {
	kind := types.FingerprintDifference
	layer := Layer{Name: "STRUCTURAL", Kind: kind, Threshold: 1}

	pool := []*types.ImageRecord{
		fpRecord("/d/a.png", kind, 0x0000),
		fpRecord("/d/b.png", kind, 0x0001),
		fpRecord("/d/y.png", kind, 0xFF00),
		fpRecord("/d/z.png", kind, 0xFF01),
		fpRecord("/d/lone.png", kind, 0x0F0F),
	}

	groups := layer.Detect(pool)
	require.Len(t, groups, 2)

	// No record appears in more than one group
	seen := make(map[string]int)
	for _, g := range groups {
		for _, m := range g.Members {
			seen[m.Path]++
		}
	}
	for path, count := range seen {
		assert.Equal(t, 1, count, path)
	}
	assert.NotContains(t, seen, "/d/lone.png")
}

func TestDetectPerceptualExcludesUnusableRecords(t *testing.T) {
	kind := types.FingerprintAverage
	layer := Layer{Name: "SIMILAR", Kind: kind, Threshold: 10}

	failed := fpRecord("/d/broken.png", kind, 0)
	failed.DecodeFailed = true

	pool := []*types.ImageRecord{
		fpRecord("/d/a.png", kind, 0),
		failed,
		{Path: "/d/unhashed.png"},
	}

	assert.Empty(t, layer.Detect(pool))
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)

	uf.union(0, 1)
	uf.union(3, 4)
	assert.Equal(t, uf.find(0), uf.find(1))
	assert.NotEqual(t, uf.find(1), uf.find(3))

	uf.union(1, 3)
	assert.Equal(t, uf.find(0), uf.find(4))
	assert.NotEqual(t, uf.find(0), uf.find(2))
}
