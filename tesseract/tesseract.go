// Package tesseract implements the OCR engine contract on top of the
// Tesseract engine via gosseract. It requires Tesseract to be installed on
// the system (apt-get install tesseract-ocr / brew install tesseract).
package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"

	pdffigures "github.com/visarch/pdffigures"
)

// Engine recognizes page images with Tesseract. A fresh gosseract client is
// created per call, so one Engine value can be shared across documents.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed OCR engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

// Name identifies the engine in logs and errors.
func (e *Engine) Name() string { return "tesseract" }

// Recognize runs Tesseract page layout analysis over the image and splits
// the detected paragraphs into non-text regions (no recognized words;
// candidate figures) and text blocks (caption candidates). Options follows
// the Tesseract CLI convention, e.g. "--psm 3 --oem 1"; unknown long flags
// are ignored and key=value pairs are applied as Tesseract variables.
func (e *Engine) Recognize(ctx context.Context, img image.Image, options string) (pdffigures.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return pdffigures.Recognition{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return pdffigures.Recognition{}, errors.Wrap(err, "failed to encode page image")
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return pdffigures.Recognition{}, errors.Wrap(err, "failed to set image")
	}
	if err := applyOptions(client, options); err != nil {
		return pdffigures.Recognition{}, err
	}

	// Paragraph-level iteration mirrors Tesseract's hOCR ocr_par elements:
	// a paragraph without recognized words is a non-text region.
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return pdffigures.Recognition{}, errors.Wrap(err, "tesseract recognition failed")
	}

	var recognition pdffigures.Recognition
	for _, b := range boxes {
		box := pdffigures.NewBBox(
			float64(b.Box.Min.X),
			float64(b.Box.Min.Y),
			float64(b.Box.Max.X),
			float64(b.Box.Max.Y),
			pdffigures.UnitPixel,
		)
		if strings.TrimSpace(b.Word) == "" {
			recognition.NonText = append(recognition.NonText, box)
			continue
		}
		recognition.Texts = append(recognition.Texts, pdffigures.TextRegion{
			Box:  box,
			Text: b.Word,
		})
	}
	return recognition, nil
}

// applyOptions translates an engine options string into gosseract calls.
// "--psm N" sets the page segmentation mode. "--oem N" is accepted but has
// no effect here: the engine mode is fixed when the gosseract client
// initializes. Bare key=value tokens become Tesseract variables.
func applyOptions(client *gosseract.Client, options string) error {
	fields := strings.Fields(options)
	for i := 0; i < len(fields); i++ {
		switch {
		case fields[i] == "--psm" && i+1 < len(fields):
			mode, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return errors.Wrapf(err, "invalid psm value %q", fields[i+1])
			}
			if err := client.SetPageSegMode(gosseract.PageSegMode(mode)); err != nil {
				return errors.Wrap(err, "failed to set page segmentation mode")
			}
			i++
		case fields[i] == "--oem" && i+1 < len(fields):
			i++
		case strings.Contains(fields[i], "="):
			parts := strings.SplitN(fields[i], "=", 2)
			if err := client.SetVariable(gosseract.SettableVariable(parts[0]), parts[1]); err != nil {
				return errors.Wrapf(err, "failed to set variable %s", parts[0])
			}
		}
	}
	return nil
}
