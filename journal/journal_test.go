package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()

	quarantine := filepath.Join(t.TempDir(), "duplicates")
	j, err := Open(quarantine)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	return j, quarantine
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestOpenCreatesQuarantineAndSchema(t *testing.T) {
	_, quarantine := openTestJournal(t)

	assert.DirExists(t, quarantine)
	assert.FileExists(t, filepath.Join(quarantine, JournalFilename))
}

func TestRecordAndQueryMoves(t *testing.T) {
	j, _ := openTestJournal(t)

	require.NoError(t, j.RecordMove(Move{
		SessionID:   "s1",
		Layer:       "EXACT",
		Reason:      "kept first in path order",
		Source:      "/data/a.png",
		Destination: "/data/duplicates/a.png",
		Bytes:       100,
	}))
	require.NoError(t, j.RecordMove(Move{
		SessionID:          "s1",
		Layer:              "WAVELET",
		Source:             "/data/b.png",
		Destination:        "/data/duplicates/b.png",
		SidecarSource:      "/data/b.txt",
		SidecarDestination: "/data/duplicates/b.txt",
		Bytes:              200,
	}))
	require.NoError(t, j.RecordMove(Move{
		SessionID:   "s2",
		Layer:       "EXACT",
		Source:      "/data/c.png",
		Destination: "/data/duplicates/c.png",
	}))

	moves, err := j.MovesForSession("s1")
	require.NoError(t, err)
	require.Len(t, moves, 2)

	// Applied order is preserved
	assert.Equal(t, "/data/a.png", moves[0].Source)
	assert.Equal(t, "/data/b.png", moves[1].Source)
	assert.Equal(t, "/data/duplicates/b.txt", moves[1].SidecarDestination)
	assert.NotEmpty(t, moves[0].MovedAt)

	last, err := j.LastSession()
	require.NoError(t, err)
	assert.Equal(t, "s2", last)
}

func TestLastSessionEmptyJournal(t *testing.T) {
	j, _ := openTestJournal(t)

	_, err := j.LastSession()
	assert.Error(t, err)
}

func TestRevert(t *testing.T) {
	j, quarantine := openTestJournal(t)
	dataset := filepath.Dir(quarantine)

	imgSrc := filepath.Join(dataset, "a.png")
	imgDst := filepath.Join(quarantine, "a.png")
	sideSrc := filepath.Join(dataset, "a.txt")
	sideDst := filepath.Join(quarantine, "a.txt")
	writeFile(t, imgDst, "image")
	writeFile(t, sideDst, "caption")

	require.NoError(t, j.RecordMove(Move{
		SessionID:          "s1",
		Layer:              "EXACT",
		Source:             imgSrc,
		Destination:        imgDst,
		SidecarSource:      sideSrc,
		SidecarDestination: sideDst,
		Bytes:              5,
	}))

	restored, err := j.Revert("s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	assert.FileExists(t, imgSrc)
	assert.FileExists(t, sideSrc)
	assert.NoFileExists(t, imgDst)
	assert.NoFileExists(t, sideDst)

	// Restored rows are cleared, so the session is gone
	_, err = j.Revert("s1", nil)
	assert.Error(t, err)
}

func TestRevertRefusesOccupiedLocation(t *testing.T) {
	j, quarantine := openTestJournal(t)
	dataset := filepath.Dir(quarantine)

	src := filepath.Join(dataset, "a.png")
	dst := filepath.Join(quarantine, "a.png")
	writeFile(t, dst, "quarantined")

	// Something new appeared at the original location since the move
	writeFile(t, src, "newcomer")

	require.NoError(t, j.RecordMove(Move{
		SessionID:   "s1",
		Layer:       "EXACT",
		Source:      src,
		Destination: dst,
	}))

	var reported []Move
	restored, err := j.Revert("s1", func(m Move, err error) {
		reported = append(reported, m)
	})
	require.NoError(t, err)

	assert.Equal(t, 0, restored)
	require.Len(t, reported, 1)
	assert.Equal(t, src, reported[0].Source)

	// Neither file was touched and the row stays for a later retry
	assert.Equal(t, "newcomer", readFile(t, src))
	assert.Equal(t, "quarantined", readFile(t, dst))

	moves, err := j.MovesForSession("s1")
	require.NoError(t, err)
	assert.Len(t, moves, 1)
}

func TestRevertUnknownSession(t *testing.T) {
	j, _ := openTestJournal(t)

	_, err := j.Revert("nope", nil)
	assert.Error(t, err)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
