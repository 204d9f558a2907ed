package pdffigures

import (
	"context"
	"image"
	"log/slog"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// Aspect ratio bounds for OCR-detected regions. Tesseract tends to report
// page rules and column separators as empty paragraphs; anything wider than
// 20:1 or taller than 1:20 is discarded as not being a figure.
const (
	maxRegionAspect = 20.0
	minRegionAspect = 1.0 / 20.0
)

// OCRDetector finds visuals by rasterizing pages and running an OCR engine
// over them. Bounding boxes are in pixel units at the configured
// resolution.
type OCRDetector struct {
	instance pdfium.Pdfium
	engine   Engine
	settings OCRSettings
	storage  Storage
	logger   *slog.Logger
}

// NewOCRDetector builds an OCR detector. Storage may be nil.
func NewOCRDetector(instance pdfium.Pdfium, engine Engine, settings OCRSettings, storage Storage, logger *slog.Logger) *OCRDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRDetector{
		instance: instance,
		engine:   engine,
		settings: settings,
		storage:  storage,
		logger:   logger,
	}
}

// Name identifies the detection strategy.
func (d *OCRDetector) Name() string { return "ocr" }

// Detect rasterizes the requested pages (nil means all), runs the OCR
// engine on each, and records one Visual per surviving non-text region.
// An engine failure on a page is logged and that page yields zero visuals;
// it never aborts the document.
func (d *OCRDetector) Detect(ctx context.Context, docRef references.FPDF_DOCUMENT, doc *Document, meta *Metadata, pages []int) ([]int, error) {
	if d.engine == nil {
		return nil, errors.New("ocr detector has no engine")
	}
	pageNumbers, err := resolvePageNumbers(d.instance, docRef, pages)
	if err != nil {
		return nil, err
	}

	var emptyPages []int
	for _, pageNumber := range pageNumbers {
		if err := ctx.Err(); err != nil {
			return emptyPages, err
		}
		found, err := d.detectPage(ctx, docRef, doc, meta, pageNumber)
		if err != nil {
			if errors.Is(err, ErrInconsistentMetadata) || errors.Is(err, context.Canceled) {
				return emptyPages, err
			}
			d.logger.Warn("ocr failed on page",
				"document", doc.Location.File,
				"page", pageNumber,
				"error", err)
			found = 0
		}
		if found == 0 {
			emptyPages = append(emptyPages, pageNumber)
		}
	}
	return emptyPages, nil
}

// detectPage rasterizes and recognizes one page, returning the number of
// visuals found.
func (d *OCRDetector) detectPage(ctx context.Context, docRef references.FPDF_DOCUMENT, doc *Document, meta *Metadata, pageNumber int) (int, error) {
	pageResp, err := d.instance.FPDF_LoadPage(&requests.FPDF_LoadPage{
		Document: docRef,
		Index:    pageNumber - 1,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to load page")
	}
	defer d.instance.FPDF_ClosePage(&requests.FPDF_ClosePage{
		Page: pageResp.Page,
	})

	img, err := renderPage(d.instance, pageResp.Page, d.settings.Resolution)
	if err != nil {
		return 0, err
	}
	img = fitWithin(img, d.settings.Resize)

	recognition, err := d.engine.Recognize(ctx, img, d.settings.Tesseract)
	if err != nil {
		return 0, errors.Wrapf(err, "%s engine failed", d.engine.Name())
	}

	regions := filterRegions(recognition.NonText, d.settings.Image)
	texts := recognition.textElements(pageNumber)

	found := 0
	for _, region := range regions {
		visual := NewVisual(doc.ID, pageNumber, region)
		caption, err := FindCaption(region, texts, d.settings.Caption)
		if err != nil {
			return found, errors.Wrap(err, "caption search failed")
		}
		visual.Caption = caption

		if d.storage != nil {
			if err := d.storeRegion(img, visual, found); err != nil {
				d.logger.Warn("failed to store visual",
					"document", doc.Location.File,
					"page", pageNumber,
					"error", err)
			}
		}

		if err := meta.AddVisual(visual); err != nil {
			return found, err
		}
		found++
	}
	return found, nil
}

// storeRegion crops the region out of the page raster and hands it to the
// storage collaborator.
func (d *OCRDetector) storeRegion(img image.Image, visual *Visual, ordinal int) error {
	cropped, err := cropImage(img, visual.Box)
	if err != nil {
		return err
	}
	location, err := d.storage.Store(cropped, visual.DocumentID, visual.DocumentPage, ordinal)
	if err != nil {
		return err
	}
	return visual.SetStoredLocation(location)
}

// filterRegions applies the size, aspect-ratio and containment filters to
// the engine's non-text regions, preserving order.
func filterRegions(regions []BBox, filter ImageFilter) []BBox {
	sized := make([]BBox, 0, len(regions))
	for _, r := range regions {
		if !filter.Keeps(r.Width(), r.Height()) {
			continue
		}
		if ratio := regionAspect(r); ratio > maxRegionAspect || ratio < minRegionAspect {
			continue
		}
		sized = append(sized, r)
	}
	return dropContainedRegions(sized)
}

// regionAspect returns width over height; degenerate boxes report an
// aspect that always fails the ratio bounds.
func regionAspect(r BBox) float64 {
	h := r.Height()
	if h <= 0 {
		return maxRegionAspect + 1
	}
	return r.Width() / h
}

// dropContainedRegions removes regions fully contained in another region,
// keeping only the outermost boxes. OCR layout analysis frequently nests a
// detected block inside a larger one covering the same figure.
func dropContainedRegions(regions []BBox) []BBox {
	out := make([]BBox, 0, len(regions))
	for i, r := range regions {
		contained := false
		for j, other := range regions {
			if i == j {
				continue
			}
			if containsBox(other, r) && !containsBox(r, other) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, r)
		}
	}
	return out
}

// containsBox reports whether outer fully contains inner.
func containsBox(outer, inner BBox) bool {
	return inner.X0 >= outer.X0 && inner.Y0 >= outer.Y0 &&
		inner.X1 <= outer.X1 && inner.Y1 <= outer.Y1
}
