package pdffigures

import (
	"image"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// renderPage rasterizes a loaded page at the given resolution.
func renderPage(instance pdfium.Pdfium, page references.FPDF_PAGE, dpi int) (image.Image, error) {
	resp, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
		Page: requests.Page{
			ByReference: &page,
		},
		DPI: dpi,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to render page")
	}
	return resp.Result.Image, nil
}

// fitWithin downscales an image proportionally so neither dimension exceeds
// the ceiling, leaving it untouched when it already fits. Detected pixel
// coordinates refer to the returned image.
func fitWithin(img image.Image, ceiling int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if ceiling <= 0 || (w <= ceiling && h <= ceiling) {
		return img
	}

	scale := float64(ceiling) / float64(w)
	if h > w {
		scale = float64(ceiling) / float64(h)
	}
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// cropImage extracts the region of a page image covered by a pixel-unit
// bounding box, clamped to the image bounds.
func cropImage(img image.Image, box BBox) (image.Image, error) {
	rect := image.Rect(int(box.X0), int(box.Y0), int(box.X1), int(box.Y1)).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, errors.Errorf("region %s is outside the image bounds", box)
	}
	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Copy(dst, image.Point{}, img, rect, draw.Src, nil)
		return dst, nil
	}
	return sub.SubImage(rect), nil
}
