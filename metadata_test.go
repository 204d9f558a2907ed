package pdffigures

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVisualAssignsUniqueIDs(t *testing.T) {
	box := NewBBox(0, 0, 100, 100, UnitPoint)
	a := NewVisual("doc-1", 1, box)
	b := NewVisual("doc-1", 1, box)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "doc-1", a.DocumentID)
	assert.Equal(t, 1, a.DocumentPage)
}

func TestSetStoredLocationOnlyOnce(t *testing.T) {
	v := NewVisual("doc-1", 1, NewBBox(0, 0, 100, 100, UnitPoint))
	loc := FilePath{Root: "/out", File: "pdf-001/page001-00.png"}

	require.NoError(t, v.SetStoredLocation(loc))
	require.NotNil(t, v.StoredLocation)
	assert.Equal(t, filepath.Join("/out", "pdf-001/page001-00.png"), v.StoredLocation.FullPath())

	assert.Error(t, v.SetStoredLocation(loc), "second assignment must fail")
}

func TestMetadataInvariantAcrossMutations(t *testing.T) {
	meta := NewMetadata()
	doc := NewDocument(FilePath{Root: "/data", File: "report.pdf"})
	require.NoError(t, meta.AddDocument(doc))
	assert.Equal(t, 0, meta.TotalVisuals)

	for page := 1; page <= 3; page++ {
		v := NewVisual(doc.ID, page, NewBBox(0, 0, 200, 200, UnitPoint))
		require.NoError(t, meta.AddVisual(v))
	}
	assert.Equal(t, 3, meta.TotalVisuals)
	assert.Len(t, meta.Visuals(), 3)

	// A document that already carries visuals counts them on insertion.
	other := NewDocument(FilePath{Root: "/data", File: "annex.pdf"})
	other.Visuals = append(other.Visuals, NewVisual(other.ID, 1, NewBBox(0, 0, 50, 50, UnitPixel)))
	require.NoError(t, meta.AddDocument(other))
	assert.Equal(t, 4, meta.TotalVisuals)
}

func TestAddVisualRejectsUnknownDocument(t *testing.T) {
	meta := NewMetadata()
	err := meta.AddVisual(NewVisual("nope", 1, NewBBox(0, 0, 10, 10, UnitPoint)))
	assert.Error(t, err)
}

func TestMetadataDetectsCorruption(t *testing.T) {
	meta := NewMetadata()
	doc := NewDocument(FilePath{Root: "/data", File: "report.pdf"})
	require.NoError(t, meta.AddDocument(doc))
	require.NoError(t, meta.AddVisual(NewVisual(doc.ID, 1, NewBBox(0, 0, 10, 10, UnitPoint))))

	meta.TotalVisuals = 7
	err := meta.SaveJSON(filepath.Join(t.TempDir(), "metadata.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentMetadata))
}

func TestMergeFromExisting(t *testing.T) {
	prior := NewMetadata()
	prior.Entry = &EntryInfo{Identifier: "00042", Title: "Prior run"}
	priorDoc := NewDocument(FilePath{Root: "/out", File: "old.pdf"})
	require.NoError(t, prior.AddDocument(priorDoc))
	require.NoError(t, prior.AddVisual(NewVisual(priorDoc.ID, 2, NewBBox(0, 0, 100, 100, UnitPoint))))

	current := NewMetadata()
	doc := NewDocument(FilePath{Root: "/out", File: "new.pdf"})
	require.NoError(t, current.AddDocument(doc))
	require.NoError(t, current.AddVisual(NewVisual(doc.ID, 1, NewBBox(0, 0, 100, 100, UnitPixel))))

	require.NoError(t, current.MergeFromExisting(prior))

	assert.Equal(t, 2, current.TotalVisuals)
	require.Len(t, current.Documents, 2)
	// Prior documents come first; nothing is dropped.
	assert.Equal(t, "old.pdf", current.Documents[0].Location.File)
	assert.Equal(t, "new.pdf", current.Documents[1].Location.File)
	// Entry metadata survives from the prior run when the current run has none.
	require.NotNil(t, current.Entry)
	assert.Equal(t, "00042", current.Entry.Identifier)
}

func TestMergeFromExistingRejectsCorruptPrior(t *testing.T) {
	prior := NewMetadata()
	prior.TotalVisuals = 3

	current := NewMetadata()
	err := current.MergeFromExisting(prior)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentMetadata))
}

func TestMetadataJSONRoundTrip(t *testing.T) {
	meta := NewMetadata()
	meta.Entry = &EntryInfo{
		Identifier: "00123",
		Title:      "Sample thesis",
		Creators:   []Person{{Name: "Doe, J.", Role: "author"}},
	}
	doc := NewDocument(FilePath{Root: "/data", File: "thesis.pdf"})
	require.NoError(t, meta.AddDocument(doc))

	v := NewVisual(doc.ID, 4, NewBBox(10, 20, 310, 240, UnitPoint))
	v.Caption = []string{"Figure 3: floor plan"}
	require.NoError(t, v.SetStoredLocation(FilePath{Root: "/out/00123", File: "pdf-001/page004-00.png"}))
	require.NoError(t, meta.AddVisual(v))

	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, meta.SaveJSON(path))

	loaded, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.TotalVisuals)
	require.Len(t, loaded.Documents, 1)
	require.Len(t, loaded.Documents[0].Visuals, 1)

	got := loaded.Documents[0].Visuals[0]
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, doc.ID, got.DocumentID)
	assert.Equal(t, v.Box, got.Box)
	assert.Equal(t, []string{"Figure 3: floor plan"}, got.Caption)
	require.NotNil(t, got.StoredLocation)
	assert.Equal(t, "pdf-001/page004-00.png", got.StoredLocation.File)
}

func TestLoadMetadataRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"documents": [], "total_visuals": 5}`), 0644))

	_, err := LoadMetadata(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentMetadata))
}

func TestSaveCSV(t *testing.T) {
	meta := NewMetadata()
	doc := NewDocument(FilePath{Root: "/data", File: "thesis.pdf"})
	require.NoError(t, meta.AddDocument(doc))

	withCaption := NewVisual(doc.ID, 2, NewBBox(10, 20, 110, 220, UnitPoint))
	withCaption.Caption = []string{"Figure 1: site", "Figure 1 continued"}
	require.NoError(t, meta.AddVisual(withCaption))

	bare := NewVisual(doc.ID, 5, NewBBox(0, 0, 400, 300, UnitPixel))
	require.NoError(t, meta.AddVisual(bare))

	path := filepath.Join(t.TempDir(), "metadata.csv")
	require.NoError(t, meta.SaveCSV(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, withCaption.ID, rows[1][0])
	assert.Equal(t, filepath.Join("/data", "thesis.pdf"), rows[1][1])
	assert.Equal(t, "2", rows[1][2])
	assert.Equal(t, []string{"10", "20", "110", "220", "pt"}, rows[1][3:8])
	assert.Equal(t, "Figure 1: site; Figure 1 continued", rows[1][8])
	assert.Equal(t, "", rows[1][10], "unstored visual has no location")
	assert.Equal(t, "px", rows[2][7])
}
