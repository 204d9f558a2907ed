package pdffigures

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// OffsetUnit is the unit an offset distance is expressed in. Offsets in
// millimetres or points apply to layout (point) geometry; pixel offsets
// apply to OCR (pixel) geometry.
type OffsetUnit string

const (
	OffsetMM    OffsetUnit = "mm"
	OffsetPoint OffsetUnit = "pt"
	OffsetPixel OffsetUnit = "px"
)

// Offset is a maximum caption search distance with its unit. It marshals as
// the two-element array used by the settings file, e.g. [4, "mm"].
type Offset struct {
	Value float64
	Unit  OffsetUnit
}

// MarshalJSON renders the offset as [value, unit].
func (o Offset) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{o.Value, o.Unit})
}

// UnmarshalJSON parses the [value, unit] form.
func (o *Offset) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "offset must be a [value, unit] pair")
	}
	if err := json.Unmarshal(raw[0], &o.Value); err != nil {
		return errors.Wrap(err, "offset value must be a number")
	}
	if err := json.Unmarshal(raw[1], &o.Unit); err != nil {
		return errors.Wrap(err, "offset unit must be a string")
	}
	switch o.Unit {
	case OffsetMM, OffsetPoint, OffsetPixel:
		return nil
	default:
		return errors.Errorf("unknown offset unit %q", o.Unit)
	}
}

// Resolve converts the offset to the coordinate system of boxes tagged with
// the given unit. Millimetre offsets convert to points; pixel offsets only
// apply to pixel boxes and point offsets only to point boxes, mixing them
// fails with ErrUnitMismatch.
func (o Offset) Resolve(unit Unit) (float64, error) {
	switch {
	case unit == UnitPoint && o.Unit == OffsetMM:
		return o.Value * PointsPerMM, nil
	case unit == UnitPoint && o.Unit == OffsetPoint:
		return o.Value, nil
	case unit == UnitPixel && o.Unit == OffsetPixel:
		return o.Value, nil
	default:
		return 0, errors.Wrapf(ErrUnitMismatch, "offset in %s against %s boxes", o.Unit, unit)
	}
}

// CaptionSettings controls the caption search around a detected visual.
type CaptionSettings struct {
	// Offset is the maximum distance from the visual's bounding box within
	// which caption candidates are considered.
	Offset Offset `json:"offset"`
	// Direction is the side of the visual searched: up, down, left, right
	// or all.
	Direction Direction `json:"direction"`
	// Keywords a candidate's text must start with (case-insensitive, after
	// trimming leading whitespace). Matching is mandatory: without a keyword
	// match a visual gets no caption.
	Keywords []string `json:"keywords"`
}

// ImageFilter sets the minimum size for a detected image region. A region
// is kept when either its width or its height meets the respective
// threshold; it is discarded only when both dimensions fall below them.
type ImageFilter struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Keeps reports whether a region of the given dimensions survives the
// filter.
func (f ImageFilter) Keeps(width, height float64) bool {
	return width >= f.Width || height >= f.Height
}

// LayoutSettings configures the layout (structural) detection strategy.
type LayoutSettings struct {
	Caption CaptionSettings `json:"caption"`
	Image   ImageFilter     `json:"image"`
}

// OCRSettings configures the OCR detection strategy.
type OCRSettings struct {
	Caption CaptionSettings `json:"caption"`
	Image   ImageFilter     `json:"image"`
	// Resolution is the rasterization resolution in DPI.
	Resolution int `json:"resolution"`
	// Resize caps the rasterized page's largest dimension in pixels; larger
	// renders are downscaled proportionally before OCR. Tesseract rejects
	// inputs beyond 32767 pixels.
	Resize int `json:"resize"`
	// Tesseract carries engine options verbatim, e.g. "--psm 3 --oem 1".
	Tesseract string `json:"tesseract"`
}

// Settings is the full recognized-options configuration for a run. It is
// passed explicitly into detectors rather than held as global state.
type Settings struct {
	Layout LayoutSettings `json:"layout"`
	OCR    OCRSettings    `json:"ocr"`
}

// maxTesseractInput is the hard input size limit of Tesseract 5.x.
const maxTesseractInput = 32767

// DefaultSettings returns the documented defaults. Absent keys in a
// settings file fall back to these values, never to omitted behavior.
func DefaultSettings() Settings {
	return Settings{
		Layout: LayoutSettings{
			Caption: CaptionSettings{
				Offset:    Offset{Value: 4, Unit: OffsetMM},
				Direction: DirectionDown,
				Keywords:  []string{"figure", "caption", "figuur"},
			},
			Image: ImageFilter{Width: 120, Height: 120},
		},
		OCR: OCRSettings{
			Caption: CaptionSettings{
				Offset:    Offset{Value: 50, Unit: OffsetPixel},
				Direction: DirectionDown,
				Keywords:  []string{"figure", "caption", "figuur"},
			},
			Image:      ImageFilter{Width: 120, Height: 120},
			Resolution: 250,
			Resize:     30000,
			Tesseract:  "--psm 3 --oem 1",
		},
	}
}

// Validate checks cross-field constraints that JSON decoding cannot.
func (s Settings) Validate() error {
	if !s.Layout.Caption.Direction.Valid() {
		return errors.Errorf("invalid layout caption direction %q", s.Layout.Caption.Direction)
	}
	if !s.OCR.Caption.Direction.Valid() {
		return errors.Errorf("invalid ocr caption direction %q", s.OCR.Caption.Direction)
	}
	if s.OCR.Resolution <= 0 {
		return errors.Errorf("ocr resolution must be positive, got %d", s.OCR.Resolution)
	}
	if s.OCR.Resize <= 0 || s.OCR.Resize > maxTesseractInput {
		return errors.Errorf("ocr resize must be in (0, %d], got %d", maxTesseractInput, s.OCR.Resize)
	}
	return nil
}

// LoadSettings reads a JSON settings file, overlaying it on the defaults so
// absent keys keep their documented values.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, errors.Wrapf(err, "failed to read settings file %s", path)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, errors.Wrapf(err, "failed to parse settings file %s", path)
	}
	if err := settings.Validate(); err != nil {
		return settings, errors.Wrapf(err, "invalid settings in %s", path)
	}
	return settings, nil
}

// Save writes the effective settings next to the run's other artifacts so a
// run can be reproduced.
func (s Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "failed to write settings file")
}
