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

// layoutRenderDPI is the resolution used to rasterize crops of visuals
// found by the layout strategy. Detection itself works on point geometry;
// the render only feeds the storage collaborator.
const layoutRenderDPI = 150

// LayoutDetector finds visuals through the document's native structural
// element tree. Bounding boxes are in point units.
type LayoutDetector struct {
	instance pdfium.Pdfium
	settings LayoutSettings
	storage  Storage
	logger   *slog.Logger
}

// NewLayoutDetector builds a layout detector. Storage may be nil, in which
// case visuals are recorded without a stored location.
func NewLayoutDetector(instance pdfium.Pdfium, settings LayoutSettings, storage Storage, logger *slog.Logger) *LayoutDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LayoutDetector{
		instance: instance,
		settings: settings,
		storage:  storage,
		logger:   logger,
	}
}

// Name identifies the detection strategy.
func (d *LayoutDetector) Name() string { return "layout" }

// Detect walks the requested pages (nil means all) of an open document and
// records one Visual per qualifying image element. It returns the page
// numbers that yielded zero visuals, which drives the combined strategy.
// A malformed page is logged and skipped; it never aborts the document.
func (d *LayoutDetector) Detect(ctx context.Context, docRef references.FPDF_DOCUMENT, doc *Document, meta *Metadata, pages []int) ([]int, error) {
	pageNumbers, err := resolvePageNumbers(d.instance, docRef, pages)
	if err != nil {
		return nil, err
	}

	var emptyPages []int
	for _, pageNumber := range pageNumbers {
		if err := ctx.Err(); err != nil {
			return emptyPages, err
		}
		found, err := d.detectPage(docRef, doc, meta, pageNumber)
		if err != nil {
			if errors.Is(err, ErrInconsistentMetadata) {
				return emptyPages, err
			}
			d.logger.Warn("skipping unreadable page",
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

// detectPage processes one page and returns the number of visuals found.
func (d *LayoutDetector) detectPage(docRef references.FPDF_DOCUMENT, doc *Document, meta *Metadata, pageNumber int) (int, error) {
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

	objects, err := collectPageObjects(d.instance, pageResp.Page, pageNumber)
	if err != nil {
		return 0, err
	}
	texts, err := collectTextElements(d.instance, pageResp.Page, pageNumber)
	if err != nil {
		return 0, err
	}

	// The page render is produced lazily: pages whose images all fall under
	// the size threshold never pay for rasterization.
	var pageImg image.Image

	found := 0
	for _, el := range objects {
		if el.Kind != ElementImage {
			continue
		}
		if !d.settings.Image.Keeps(el.Box.Width(), el.Box.Height()) {
			continue
		}

		visual := NewVisual(doc.ID, pageNumber, el.Box)
		caption, err := FindCaption(el.Box, texts, d.settings.Caption)
		if err != nil {
			return found, errors.Wrap(err, "caption search failed")
		}
		visual.Caption = caption

		if d.storage != nil {
			if pageImg == nil {
				pageImg, err = renderPage(d.instance, pageResp.Page, layoutRenderDPI)
				if err != nil {
					d.logger.Warn("failed to render page for storage",
						"document", doc.Location.File,
						"page", pageNumber,
						"error", err)
				}
			}
			if pageImg != nil {
				if err := d.storeVisual(pageImg, visual, found); err != nil {
					d.logger.Warn("failed to store visual",
						"document", doc.Location.File,
						"page", pageNumber,
						"error", err)
				}
			}
		}

		if err := meta.AddVisual(visual); err != nil {
			return found, err
		}
		found++
	}
	return found, nil
}

// storeVisual crops the visual's region out of a page render and hands it
// to the storage collaborator.
func (d *LayoutDetector) storeVisual(img image.Image, visual *Visual, ordinal int) error {
	// Point coordinates (origin bottom-left) map to raster pixels (origin
	// top-left) through the render scale and a vertical flip.
	scale := float64(layoutRenderDPI) / 72.0
	pageHeightPx := float64(img.Bounds().Dy())
	pixelBox := NewBBox(
		visual.Box.X0*scale,
		pageHeightPx-visual.Box.Y1*scale,
		visual.Box.X1*scale,
		pageHeightPx-visual.Box.Y0*scale,
		UnitPixel,
	)

	cropped, err := cropImage(img, pixelBox)
	if err != nil {
		return err
	}
	location, err := d.storage.Store(cropped, visual.DocumentID, visual.DocumentPage, ordinal)
	if err != nil {
		return err
	}
	return visual.SetStoredLocation(location)
}

// resolvePageNumbers expands a nil page selection to every page of the
// document, or validates an explicit selection against the page count.
func resolvePageNumbers(instance pdfium.Pdfium, docRef references.FPDF_DOCUMENT, pages []int) ([]int, error) {
	countResp, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: docRef,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page count")
	}

	if pages == nil {
		all := make([]int, 0, countResp.PageCount)
		for i := 1; i <= countResp.PageCount; i++ {
			all = append(all, i)
		}
		return all, nil
	}

	selected := make([]int, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > countResp.PageCount {
			return nil, errors.Errorf("page %d out of range (1..%d)", p, countResp.PageCount)
		}
		selected = append(selected, p)
	}
	return selected, nil
}
