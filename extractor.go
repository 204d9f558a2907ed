package pdffigures

import (
	"context"
	"log/slog"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// Strategy selects how visuals are detected in a document.
type Strategy string

const (
	// StrategyLayout uses the document's native structural element tree.
	StrategyLayout Strategy = "layout"
	// StrategyOCR rasterizes pages and runs the OCR engine on every page.
	StrategyOCR Strategy = "ocr"
	// StrategyLayoutOCR runs layout first and OCR only on the pages where
	// layout found nothing.
	StrategyLayoutOCR Strategy = "layout-ocr"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLayout, StrategyOCR, StrategyLayoutOCR:
		return true
	}
	return false
}

// Detector is the shared contract of the detection strategies: run over an
// open document (optionally restricted to a page subset, nil meaning all
// pages), contribute Visual records to the aggregate, and report which of
// the processed pages yielded zero visuals.
type Detector interface {
	Name() string
	Detect(ctx context.Context, docRef references.FPDF_DOCUMENT, doc *Document, meta *Metadata, pages []int) ([]int, error)
}

// Extractor runs detection strategies over PDF files. The zero value is not
// usable; construct with NewExtractor. The OCR engine is only required for
// the OCR and combined strategies.
type Extractor struct {
	instance pdfium.Pdfium
	engine   Engine
	settings Settings
	logger   *slog.Logger
}

// NewExtractor creates an extractor with the given settings.
func NewExtractor(instance pdfium.Pdfium, settings Settings) *Extractor {
	return &Extractor{
		instance: instance,
		settings: settings,
		logger:   slog.Default(),
	}
}

// WithEngine sets the OCR engine and returns the extractor.
func (e *Extractor) WithEngine(engine Engine) *Extractor {
	e.engine = engine
	return e
}

// WithLogger sets the logger and returns the extractor.
func (e *Extractor) WithLogger(logger *slog.Logger) *Extractor {
	e.logger = logger
	return e
}

// ExtractFile opens the PDF at the given location, appends a Document
// record to the aggregate, and runs the selected strategy over it. Storage
// receives every surviving visual's crop and may be nil. The document
// record is returned even when detection fails partway, so a run always
// produces metadata for every document it could open.
func (e *Extractor) ExtractFile(ctx context.Context, location FilePath, strategy Strategy, storage Storage, meta *Metadata) (*Document, error) {
	if !strategy.Valid() {
		return nil, errors.Errorf("unknown strategy %q", strategy)
	}

	path := location.FullPath()
	docResp, err := e.instance.OpenDocument(&requests.OpenDocument{
		FilePath: &path,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open PDF document %s", path)
	}
	defer e.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: docResp.Document,
	})

	doc := NewDocument(location)
	if err := meta.AddDocument(doc); err != nil {
		return nil, err
	}

	return doc, e.detect(ctx, docResp.Document, doc, meta, strategy, storage)
}

// detect dispatches to the strategy implementations over an open document.
func (e *Extractor) detect(ctx context.Context, docRef references.FPDF_DOCUMENT, doc *Document, meta *Metadata, strategy Strategy, storage Storage) error {
	layout := NewLayoutDetector(e.instance, e.settings.Layout, storage, e.logger)
	ocr := NewOCRDetector(e.instance, e.engine, e.settings.OCR, storage, e.logger)
	return runDetectors(ctx, strategy, layout, ocr, docRef, doc, meta, e.logger)
}

// runDetectors executes the strategy's detector sequence over an open
// document.
func runDetectors(ctx context.Context, strategy Strategy, layout, ocr Detector, docRef references.FPDF_DOCUMENT, doc *Document, meta *Metadata, logger *slog.Logger) error {
	switch strategy {
	case StrategyLayout:
		_, err := layout.Detect(ctx, docRef, doc, meta, nil)
		return err
	case StrategyOCR:
		_, err := ocr.Detect(ctx, docRef, doc, meta, nil)
		return err
	case StrategyLayoutOCR:
		// Layout runs over the whole document; OCR only revisits the pages
		// where layout came up empty. Pages that already produced a layout
		// visual are never reprocessed, even if layout found the "wrong"
		// visuals there.
		emptyPages, err := layout.Detect(ctx, docRef, doc, meta, nil)
		if err != nil {
			return err
		}
		if len(emptyPages) == 0 {
			return nil
		}
		logger.Info("running ocr on pages without layout visuals",
			"document", doc.Location.File,
			"pages", emptyPages)
		_, err = ocr.Detect(ctx, docRef, doc, meta, emptyPages)
		return err
	default:
		return errors.Errorf("unknown strategy %q", strategy)
	}
}
