package pdffigures

import (
	"context"
	"image"
)

// TextRegion is one recognized text block with its pixel-unit bounding box.
type TextRegion struct {
	Box  BBox
	Text string
}

// Recognition is the output of an OCR engine for one page image.
type Recognition struct {
	// NonText are the bounding boxes of regions where layout analysis found
	// content but recognition produced no words; these are the candidate
	// figures. Pixel units, origin top-left.
	NonText []BBox
	// Texts are the recognized text blocks, used as caption candidates.
	Texts []TextRegion
}

// Engine is the OCR collaborator contract. Options is an engine-specific
// configuration string passed through verbatim from the settings
// (e.g. "--psm 3 --oem 1" for Tesseract).
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, options string) (Recognition, error)
}

// textElements converts a recognition's text blocks into classified page
// elements for the caption associator, preserving the engine's order.
func (r Recognition) textElements(pageNumber int) []PageElement {
	elements := make([]PageElement, 0, len(r.Texts))
	for _, t := range r.Texts {
		elements = append(elements, PageElement{
			Kind:       ElementText,
			Box:        t.Box,
			PageNumber: pageNumber,
			Text:       t.Text,
		})
	}
	return elements
}
