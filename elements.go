package pdffigures

import (
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/enums"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// ElementKind buckets classified page content.
type ElementKind int

const (
	ElementOther ElementKind = iota
	ElementImage
	ElementText
)

func (k ElementKind) String() string {
	switch k {
	case ElementImage:
		return "image"
	case ElementText:
		return "text"
	default:
		return "other"
	}
}

// PageElement is a classified item on a page. Elements are produced
// transiently during detection, in document order, and are not persisted.
// Text carries the extracted string content for text elements only.
type PageElement struct {
	Kind       ElementKind
	Box        BBox
	PageNumber int // 1-based
	Text       string
}

// classifyObjectKind maps a pdfium page-object type to an element kind.
// Embedded raster images classify as images, text runs as text, and
// everything else (paths, shading, forms at this level) as other.
func classifyObjectKind(objType enums.FPDF_PAGEOBJ) ElementKind {
	switch objType {
	case enums.FPDF_PAGEOBJ_IMAGE:
		return ElementImage
	case enums.FPDF_PAGEOBJ_TEXT:
		return ElementText
	default:
		return ElementOther
	}
}

// collectPageObjects walks the structural object tree of a loaded page and
// returns its image and non-image objects as classified elements in document
// order. Form XObjects are flattened depth-first into the same page-level
// list, so nested containers contribute their children at the position the
// container occupies in the tree. Text content is filled in separately by
// collectTextElements, which gives better line grouping than per-object text.
func collectPageObjects(instance pdfium.Pdfium, page references.FPDF_PAGE, pageNumber int) ([]PageElement, error) {
	countResp, err := instance.FPDFPage_CountObjects(&requests.FPDFPage_CountObjects{
		Page: requests.Page{
			ByReference: &page,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count page objects")
	}

	var elements []PageElement
	for i := 0; i < countResp.Count; i++ {
		objResp, err := instance.FPDFPage_GetObject(&requests.FPDFPage_GetObject{
			Page: requests.Page{
				ByReference: &page,
			},
			Index: i,
		})
		if err != nil {
			continue
		}
		elements = appendObject(instance, objResp.PageObject, pageNumber, elements)
	}

	return elements, nil
}

// appendObject classifies a single page object and appends it to the element
// list, recursing into form containers.
func appendObject(instance pdfium.Pdfium, obj references.FPDF_PAGEOBJECT, pageNumber int, elements []PageElement) []PageElement {
	typeResp, err := instance.FPDFPageObj_GetType(&requests.FPDFPageObj_GetType{
		PageObject: obj,
	})
	if err != nil {
		return elements
	}

	if typeResp.Type == enums.FPDF_PAGEOBJ_FORM {
		countResp, err := instance.FPDFFormObj_CountObjects(&requests.FPDFFormObj_CountObjects{
			PageObject: obj,
		})
		if err != nil {
			return elements
		}
		for i := 0; i < countResp.Count; i++ {
			childResp, err := instance.FPDFFormObj_GetObject(&requests.FPDFFormObj_GetObject{
				PageObject: obj,
				Index:      uint64(i),
			})
			if err != nil {
				continue
			}
			elements = appendObject(instance, childResp.PageObject, pageNumber, elements)
		}
		return elements
	}

	boundsResp, err := instance.FPDFPageObj_GetBounds(&requests.FPDFPageObj_GetBounds{
		PageObject: obj,
	})
	if err != nil {
		return elements
	}

	elements = append(elements, PageElement{
		Kind: classifyObjectKind(typeResp.Type),
		Box: NewBBox(
			float64(boundsResp.Left),
			float64(boundsResp.Bottom),
			float64(boundsResp.Right),
			float64(boundsResp.Top),
			UnitPoint,
		),
		PageNumber: pageNumber,
	})
	return elements
}

// collectTextElements extracts line-level text boxes from a loaded page
// using pdfium's text rectangles. Each rectangle becomes one text element
// with its content, in the order pdfium reports them (document order).
// These are the caption candidates for the layout strategy.
func collectTextElements(instance pdfium.Pdfium, page references.FPDF_PAGE, pageNumber int) ([]PageElement, error) {
	textPage, err := instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{
		Page: requests.Page{
			ByReference: &page,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load text page")
	}
	defer instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{
		TextPage: textPage.TextPage,
	})

	rectsResp, err := instance.FPDFText_CountRects(&requests.FPDFText_CountRects{
		TextPage:   textPage.TextPage,
		StartIndex: 0,
		Count:      -1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count text rects")
	}

	var elements []PageElement
	for i := 0; i < rectsResp.Count; i++ {
		rectResp, err := instance.FPDFText_GetRect(&requests.FPDFText_GetRect{
			TextPage: textPage.TextPage,
			Index:    i,
		})
		if err != nil {
			continue
		}

		textResp, err := instance.FPDFText_GetBoundedText(&requests.FPDFText_GetBoundedText{
			TextPage: textPage.TextPage,
			Left:     rectResp.Left,
			Top:      rectResp.Top,
			Right:    rectResp.Right,
			Bottom:   rectResp.Bottom,
		})
		if err != nil {
			continue
		}

		elements = append(elements, PageElement{
			Kind: ElementText,
			Box: NewBBox(
				rectResp.Left,
				rectResp.Bottom,
				rectResp.Right,
				rectResp.Top,
				UnitPoint,
			),
			PageNumber: pageNumber,
			Text:       textResp.Text,
		})
	}

	return elements, nil
}

// filterByKind returns the elements matching the given kind, preserving
// order.
func filterByKind(elements []PageElement, kind ElementKind) []PageElement {
	var out []PageElement
	for _, el := range elements {
		if el.Kind == kind {
			out = append(out, el)
		}
	}
	return out
}
