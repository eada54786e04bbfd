package dedupe

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"imagededup/config"
	"imagededup/journal"
	"imagededup/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPNG encodes a gradient whose seed makes the bytes unique per seed
func testPNG(t *testing.T, seed int) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*seed + y*(seed+3)) % 256)})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// recordingSink captures resolved groups for assertions
type recordingSink struct {
	NopSink
	applied int
	skipped int
	moved   []string
}

func (r *recordingSink) GroupResolved(plan *types.ResolutionPlan, applied bool) {
	if applied {
		r.applied++
	} else {
		r.skipped++
	}
}

func (r *recordingSink) FileMoved(record *types.ImageRecord, imageDest, sidecarDest string) {
	r.moved = append(r.moved, record.Path)
}

func TestRunUnattendedMovesExactDuplicates(t *testing.T) {
	dir := t.TempDir()
	img := testPNG(t, 7)

	writeBytes(t, filepath.Join(dir, "a.png"), img)
	writeBytes(t, filepath.Join(dir, "b.png"), img)
	writeBytes(t, filepath.Join(dir, "b.txt"), []byte("a caption"))

	jnl, err := journal.Open(filepath.Join(dir, "duplicates"))
	require.NoError(t, err)
	defer jnl.Close()

	sink := &recordingSink{}
	session := NewSession(Options{
		Directory:  dir,
		Config:     config.Default(),
		Unattended: true,
		Events:     sink,
		Journal:    jnl,
	})

	summary, err := session.Run()
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.GroupsFound)
	assert.Equal(t, 1, summary.Kept)
	assert.Equal(t, 1, summary.Moved)
	assert.Equal(t, int64(len(img)), summary.BytesReclaimed)
	assert.Equal(t, 1, summary.MovedByLayer["EXACT"])
	assert.Equal(t, 0, summary.Errors)
	assert.False(t, summary.Aborted)
	assert.Equal(t, StateCompleted, session.State())

	// Identical quality all the way down, so the first path is kept
	assert.FileExists(t, filepath.Join(dir, "a.png"))
	assert.NoFileExists(t, filepath.Join(dir, "b.png"))
	assert.NoFileExists(t, filepath.Join(dir, "b.txt"))

	// The loser and its caption landed in quarantine together
	assert.FileExists(t, filepath.Join(dir, "duplicates", "b.png"))
	assert.FileExists(t, filepath.Join(dir, "duplicates", "b.txt"))

	assert.Equal(t, 1, sink.applied)
	assert.Equal(t, []string{filepath.Join(dir, "b.png")}, sink.moved)

	// The move is journaled under this session for undo
	moves, err := jnl.MovesForSession(summary.SessionID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, filepath.Join(dir, "b.png"), moves[0].Source)
	assert.Equal(t, filepath.Join(dir, "b.txt"), moves[0].SidecarSource)
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	img := testPNG(t, 5)

	writeBytes(t, filepath.Join(dir, "a.png"), img)
	writeBytes(t, filepath.Join(dir, "b.png"), img)

	opts := Options{Directory: dir, Config: config.Default(), Unattended: true}

	first, err := Run(opts)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Moved)

	// The quarantine directory is excluded from the rescan, so a second
	// run converges with nothing to do
	second, err := Run(opts)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Scanned)
	assert.Equal(t, 0, second.GroupsFound)
	assert.Equal(t, 0, second.Moved)
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	img := testPNG(t, 9)

	writeBytes(t, filepath.Join(dir, "a.png"), img)
	writeBytes(t, filepath.Join(dir, "b.png"), img)

	sink := &recordingSink{}
	summary, err := Run(Options{
		Directory:  dir,
		Config:     config.Default(),
		Unattended: true,
		DryRun:     true,
		Events:     sink,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.GroupsFound)
	assert.Equal(t, 0, summary.Moved)
	assert.Equal(t, int64(0), summary.BytesReclaimed)

	assert.FileExists(t, filepath.Join(dir, "a.png"))
	assert.FileExists(t, filepath.Join(dir, "b.png"))
	assert.NoDirExists(t, filepath.Join(dir, "duplicates"))

	// Plans are reported but never applied
	assert.Equal(t, 0, sink.applied)
	assert.Equal(t, 1, sink.skipped)
}

func TestRunAbortLeavesLaterGroupsUntouched(t *testing.T) {
	dir := t.TempDir()

	// Three exact pairs become three groups in one layer, reviewed in
	// keeper path order: a1, b1, c1
	for i, stem := range []string{"a", "b", "c"} {
		img := testPNG(t, 11+2*i)
		writeBytes(t, filepath.Join(dir, stem+"1.png"), img)
		writeBytes(t, filepath.Join(dir, stem+"2.png"), img)
	}

	decisions := []Decision{DecisionApplyGroup, DecisionSkipGroup, DecisionAbort}
	calls := 0
	decide := func(layer Layer, plan *types.ResolutionPlan, groupNum, totalGroups int) Decision {
		assert.Equal(t, calls+1, groupNum)
		assert.Equal(t, 3, totalGroups)
		d := decisions[calls]
		calls++
		return d
	}

	session := NewSession(Options{
		Directory: dir,
		Config:    config.Default(),
		Decide:    decide,
	})

	summary, err := session.Run()
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, summary.GroupsFound)
	assert.Equal(t, 1, summary.Moved)
	assert.Equal(t, 1, summary.Kept)
	assert.Equal(t, 1, summary.SkippedGroups)
	assert.Equal(t, 0, summary.Errors)
	assert.True(t, summary.Aborted)
	assert.Equal(t, StateAborted, session.State())

	// Only the first group's loser moved
	assert.FileExists(t, filepath.Join(dir, "a1.png"))
	assert.NoFileExists(t, filepath.Join(dir, "a2.png"))
	assert.FileExists(t, filepath.Join(dir, "duplicates", "a2.png"))

	// The skipped and aborted groups are exactly as found
	for _, name := range []string{"b1.png", "b2.png", "c1.png", "c2.png"} {
		assert.FileExists(t, filepath.Join(dir, name), name)
	}
}

func TestRunSkipLayerKeepsMembersForLooserLayers(t *testing.T) {
	dir := t.TempDir()
	img := testPNG(t, 17)

	// One identical pair; skipping every layer must leave the files
	// untouched while each looser layer still gets to regroup them
	writeBytes(t, filepath.Join(dir, "a.png"), img)
	writeBytes(t, filepath.Join(dir, "b.png"), img)

	var layersSeen []string
	decide := func(layer Layer, plan *types.ResolutionPlan, groupNum, totalGroups int) Decision {
		layersSeen = append(layersSeen, layer.Name)
		assert.Equal(t, 1, groupNum)
		assert.Equal(t, 1, totalGroups)
		return DecisionSkipLayer
	}

	summary, err := Run(Options{
		Directory: dir,
		Config:    config.Default(),
		Decide:    decide,
	})
	require.NoError(t, err)

	// Identical files match in every layer of the cascade
	assert.Equal(t, []string{"EXACT", "NEAR-EXACT", "STRUCTURAL", "WAVELET", "SIMILAR"}, layersSeen)
	assert.Equal(t, 5, summary.SkippedLayers)
	assert.Equal(t, 0, summary.SkippedGroups)
	assert.Equal(t, 0, summary.Moved)
	assert.False(t, summary.Aborted)

	assert.FileExists(t, filepath.Join(dir, "a.png"))
	assert.FileExists(t, filepath.Join(dir, "b.png"))
}

func TestRunApplyLayerStopsPrompting(t *testing.T) {
	dir := t.TempDir()

	for i, stem := range []string{"a", "b"} {
		img := testPNG(t, 21+2*i)
		writeBytes(t, filepath.Join(dir, stem+"1.png"), img)
		writeBytes(t, filepath.Join(dir, stem+"2.png"), img)
	}

	calls := 0
	decide := func(Layer, *types.ResolutionPlan, int, int) Decision {
		calls++
		return DecisionApplyLayer
	}

	summary, err := Run(Options{
		Directory: dir,
		Config:    config.Default(),
		Decide:    decide,
	})
	require.NoError(t, err)

	// One decision covers the whole layer
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, summary.Moved)
	assert.Equal(t, 2, summary.Kept)
	assert.False(t, summary.Aborted)
}

// boundaryRecords builds the classic three-file setup: a and b are
// byte-identical, c resembles a only at the loosest layer's threshold.
// Hashes are pre-attached so the layers run without touching pixel data.
func boundaryRecords(t *testing.T, dir string) []*types.ImageRecord {
	t.Helper()

	writeBytes(t, filepath.Join(dir, "a.jpg"), []byte("same-bytes"))
	writeBytes(t, filepath.Join(dir, "b.jpg"), []byte("same-bytes"))
	writeBytes(t, filepath.Join(dir, "c.jpg"), []byte("diff-bytes"))

	var records []*types.ImageRecord
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		records = append(records, &types.ImageRecord{
			Path: filepath.Join(dir, name),
			Size: 10,
		})
	}
	a, b, c := records[0], records[1], records[2]

	a.ContentHash = "h-same"
	b.ContentHash = "h-same"
	c.ContentHash = "h-diff"

	// c sits one bit from a on the average hash and far away on every
	// stricter fingerprint
	for _, r := range records {
		r.SetFingerprint(types.FingerprintPerceptual, 0)
		r.SetFingerprint(types.FingerprintDifference, 0)
		r.SetFingerprint(types.FingerprintWavelet, 0)
		r.SetFingerprint(types.FingerprintAverage, 0)
	}
	c.SetFingerprint(types.FingerprintPerceptual, types.Fingerprint(^uint64(0)))
	c.SetFingerprint(types.FingerprintDifference, types.Fingerprint(^uint64(0)))
	c.SetFingerprint(types.FingerprintWavelet, types.Fingerprint(^uint64(0)))
	c.SetFingerprint(types.FingerprintAverage, types.Fingerprint(1))

	return records
}

func runAllLayers(s *Session) {
	for _, layer := range Catalogue(s.opts.Config.Thresholds) {
		if s.runLayer(layer) {
			break
		}
	}
}

func TestKeeperExcludedFromLooserLayersByDefault(t *testing.T) {
	dir := t.TempDir()

	session := NewSession(Options{
		Directory:  dir,
		Config:     config.Default(),
		Unattended: true,
	})
	session.pool = boundaryRecords(t, dir)

	runAllLayers(session)

	// The exact layer claims {a, b}; its keeper a is out of the pool, so
	// c has no partner left at the broad layer and stays put
	assert.Equal(t, 1, session.summary.GroupsFound)
	assert.Equal(t, 1, session.summary.Moved)
	assert.FileExists(t, filepath.Join(dir, "a.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "b.jpg"))
	assert.FileExists(t, filepath.Join(dir, "c.jpg"))
}

func TestKeeperRescanConnectsAtBroadLayer(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.RescanKeepers = true
	session := NewSession(Options{
		Directory:  dir,
		Config:     cfg,
		Unattended: true,
	})
	session.pool = boundaryRecords(t, dir)

	runAllLayers(session)

	// With the rescan policy the exact-layer keeper re-enters the broad
	// layer, where it pairs with c and wins on path order
	assert.Equal(t, 2, session.summary.GroupsFound)
	assert.Equal(t, 2, session.summary.Moved)
	assert.Equal(t, 1, session.summary.MovedByLayer["EXACT"])
	assert.Equal(t, 1, session.summary.MovedByLayer["SIMILAR"])
	assert.FileExists(t, filepath.Join(dir, "a.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "b.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "c.jpg"))
	assert.FileExists(t, filepath.Join(dir, "duplicates", "c.jpg"))
}

func TestLayerCandidatesRescanPolicy(t *testing.T) {
	pooled := &types.ImageRecord{Path: "/d/b.png"}
	keeper := &types.ImageRecord{Path: "/d/a.png"}

	session := NewSession(Options{Directory: "/d", Config: config.Default()})
	session.pool = []*types.ImageRecord{pooled}
	session.keepers = map[string]*types.ImageRecord{keeper.Path: keeper}

	// Default policy: keepers stay out of later layers
	candidates := session.layerCandidates()
	require.Len(t, candidates, 1)
	assert.Same(t, pooled, candidates[0])

	// Rescan policy re-admits applied keepers, in path order
	session.opts.Config.RescanKeepers = true
	candidates = session.layerCandidates()
	require.Len(t, candidates, 2)
	assert.Same(t, keeper, candidates[0])
	assert.Same(t, pooled, candidates[1])
}

func TestRunScanFailure(t *testing.T) {
	_, err := Run(Options{
		Directory: filepath.Join(t.TempDir(), "missing"),
		Config:    config.Default(),
	})
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "awaiting-decision", StateAwaitingDecision.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "unknown", State(99).String())
}
