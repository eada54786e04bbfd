package dedupe

import (
	"sort"

	"imagededup/config"
	"imagededup/types"
)

// Layer is one duplicate-detection strategy. Layers run strictly in
// catalogue order, from highest to lowest confidence; each layer only sees
// records no earlier layer has claimed.
type Layer struct {
	Name        string
	Description string
	Risk        string

	// Exact layers match on the content hash; perceptual layers match on
	// Kind at Hamming distance <= Threshold
	Exact     bool
	Kind      types.FingerprintKind
	Threshold int
}

// Catalogue returns the ordered detection layers with the configured
// thresholds applied
func Catalogue(t config.Thresholds) []Layer {
	return []Layer{
		{
			Name:        "EXACT",
			Description: "Byte-for-byte identical files",
			Risk:        "safe",
			Exact:       true,
		},
		{
			Name:        "NEAR-EXACT",
			Description: "Re-encodes and re-saves of the same image",
			Risk:        "safe",
			Kind:        types.FingerprintPerceptual,
			Threshold:   t.Perceptual,
		},
		{
			Name:        "STRUCTURAL",
			Description: "Small crops, watermarks, minor edits",
			Risk:        "low risk",
			Kind:        types.FingerprintDifference,
			Threshold:   t.Difference,
		},
		{
			Name:        "WAVELET",
			Description: "Recompressed or resized variants",
			Risk:        "medium risk",
			Kind:        types.FingerprintWavelet,
			Threshold:   t.Wavelet,
		},
		{
			Name:        "SIMILAR",
			Description: "Visually similar images, review carefully",
			Risk:        "higher risk",
			Kind:        types.FingerprintAverage,
			Threshold:   t.Average,
		},
	}
}

// Detect groups the given records under this layer's match predicate.
// It is a pure function over hashes already attached to the records:
// an edge connects two records whose distance is within the threshold,
// and every connected component of size >= 2 becomes one group. Returned
// groups and their members are sorted by path.
func (l Layer) Detect(pool []*types.ImageRecord) []*types.DuplicateGroup {
	if l.Exact {
		return l.detectExact(pool)
	}
	return l.detectPerceptual(pool)
}

// detectExact buckets records by content hash
func (l Layer) detectExact(pool []*types.ImageRecord) []*types.DuplicateGroup {
	buckets := make(map[string][]*types.ImageRecord)
	for _, r := range pool {
		if r.ContentHash == "" || r.HashFailed {
			continue
		}
		buckets[r.ContentHash] = append(buckets[r.ContentHash], r)
	}

	var groups []*types.DuplicateGroup
	for _, members := range buckets {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, l.newGroup(members))
	}

	sortGroups(groups)
	return groups
}

// detectPerceptual connects records within the Hamming threshold and emits
// the connected components
func (l Layer) detectPerceptual(pool []*types.ImageRecord) []*types.DuplicateGroup {
	// Decode failures never reach perceptual layers
	var eligible []*types.ImageRecord
	for _, r := range pool {
		if r.DecodeFailed {
			continue
		}
		if _, ok := r.Fingerprint(l.Kind); ok {
			eligible = append(eligible, r)
		}
	}

	uf := newUnionFind(len(eligible))
	for i := 0; i < len(eligible); i++ {
		fpI, _ := eligible[i].Fingerprint(l.Kind)
		for k := i + 1; k < len(eligible); k++ {
			fpK, _ := eligible[k].Fingerprint(l.Kind)
			if fpI.Distance(fpK) <= l.Threshold {
				uf.union(i, k)
			}
		}
	}

	components := make(map[int][]*types.ImageRecord)
	for i, r := range eligible {
		root := uf.find(i)
		components[root] = append(components[root], r)
	}

	var groups []*types.DuplicateGroup
	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, l.newGroup(members))
	}

	sortGroups(groups)
	return groups
}

// newGroup builds a layer-tagged group with members in path order
func (l Layer) newGroup(members []*types.ImageRecord) *types.DuplicateGroup {
	sort.Slice(members, func(i, j int) bool {
		return members[i].Path < members[j].Path
	})
	return &types.DuplicateGroup{Layer: l.Name, Members: members}
}

// sortGroups orders groups by their first member's path
func sortGroups(groups []*types.DuplicateGroup) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members[0].Path < groups[j].Members[0].Path
	})
}

// unionFind is a plain union-find over record indices
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri != rj {
		u.parent[rj] = ri
	}
}
