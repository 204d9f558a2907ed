package pdffigures

import (
	"context"
	"log/slog"
	"testing"

	"github.com/klippa-app/go-pdfium/references"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyValid(t *testing.T) {
	assert.True(t, StrategyLayout.Valid())
	assert.True(t, StrategyOCR.Valid())
	assert.True(t, StrategyLayoutOCR.Valid())
	assert.False(t, Strategy("heuristic").Valid())
	assert.False(t, Strategy("").Valid())
}

// fakeDetector records the page subsets it was asked to process and
// contributes a fixed number of visuals per page it claims to have found
// something on.
type fakeDetector struct {
	name       string
	emptyPages []int
	err        error
	calls      [][]int
	visualsOn  []int
}

func (f *fakeDetector) Name() string { return f.name }

func (f *fakeDetector) Detect(ctx context.Context, docRef references.FPDF_DOCUMENT, doc *Document, meta *Metadata, pages []int) ([]int, error) {
	f.calls = append(f.calls, pages)
	if f.err != nil {
		return nil, f.err
	}
	for _, page := range f.visualsOn {
		if err := meta.AddVisual(NewVisual(doc.ID, page, NewBBox(0, 0, 200, 200, UnitPoint))); err != nil {
			return nil, err
		}
	}
	return f.emptyPages, nil
}

func newDetectFixture(t *testing.T) (*Document, *Metadata) {
	t.Helper()
	meta := NewMetadata()
	doc := NewDocument(FilePath{Root: "/data", File: "thesis.pdf"})
	require.NoError(t, meta.AddDocument(doc))
	return doc, meta
}

func TestRunDetectorsLayoutOnly(t *testing.T) {
	doc, meta := newDetectFixture(t)
	layout := &fakeDetector{name: "layout", visualsOn: []int{1, 3}}
	ocr := &fakeDetector{name: "ocr"}

	err := runDetectors(context.Background(), StrategyLayout, layout, ocr, "", doc, meta, slog.Default())
	require.NoError(t, err)

	require.Len(t, layout.calls, 1)
	assert.Nil(t, layout.calls[0], "layout must process all pages")
	assert.Empty(t, ocr.calls, "ocr must not run for the layout strategy")
	assert.Equal(t, 2, meta.TotalVisuals)
}

func TestRunDetectorsOCROnly(t *testing.T) {
	doc, meta := newDetectFixture(t)
	layout := &fakeDetector{name: "layout"}
	ocr := &fakeDetector{name: "ocr", visualsOn: []int{2}}

	err := runDetectors(context.Background(), StrategyOCR, layout, ocr, "", doc, meta, slog.Default())
	require.NoError(t, err)

	assert.Empty(t, layout.calls)
	require.Len(t, ocr.calls, 1)
	assert.Nil(t, ocr.calls[0], "ocr must process all pages")
	assert.Equal(t, 1, meta.TotalVisuals)
}

func TestRunDetectorsCombinedGatesOCROnEmptyPages(t *testing.T) {
	doc, meta := newDetectFixture(t)
	// Layout finds visuals on pages 1 and 4 of a five page document and
	// reports 2, 3 and 5 as empty.
	layout := &fakeDetector{name: "layout", visualsOn: []int{1, 4}, emptyPages: []int{2, 3, 5}}
	ocr := &fakeDetector{name: "ocr", visualsOn: []int{3}}

	err := runDetectors(context.Background(), StrategyLayoutOCR, layout, ocr, "", doc, meta, slog.Default())
	require.NoError(t, err)

	require.Len(t, ocr.calls, 1)
	assert.Equal(t, []int{2, 3, 5}, ocr.calls[0], "ocr must only see the pages layout left empty")
	assert.Equal(t, 3, meta.TotalVisuals)
}

func TestRunDetectorsCombinedSkipsOCRWhenLayoutCoversAllPages(t *testing.T) {
	doc, meta := newDetectFixture(t)
	layout := &fakeDetector{name: "layout", visualsOn: []int{1, 2}}
	ocr := &fakeDetector{name: "ocr"}

	err := runDetectors(context.Background(), StrategyLayoutOCR, layout, ocr, "", doc, meta, slog.Default())
	require.NoError(t, err)
	assert.Empty(t, ocr.calls, "no empty pages means no ocr pass")
}

func TestRunDetectorsCombinedStopsOnLayoutError(t *testing.T) {
	doc, meta := newDetectFixture(t)
	layout := &fakeDetector{name: "layout", err: assert.AnError}
	ocr := &fakeDetector{name: "ocr"}

	err := runDetectors(context.Background(), StrategyLayoutOCR, layout, ocr, "", doc, meta, slog.Default())
	require.Error(t, err)
	assert.Empty(t, ocr.calls)
}

func TestRunDetectorsUnknownStrategy(t *testing.T) {
	doc, meta := newDetectFixture(t)
	err := runDetectors(context.Background(), Strategy("bogus"), &fakeDetector{}, &fakeDetector{}, "", doc, meta, slog.Default())
	assert.Error(t, err)
}
