package pdffigures

import (
	"strings"

	"github.com/pkg/errors"
)

// captionDirections expands the configured direction into the concrete
// directions to evaluate.
func captionDirections(dir Direction) []Direction {
	if dir == DirectionAll {
		return []Direction{DirectionUp, DirectionDown, DirectionLeft, DirectionRight}
	}
	return []Direction{dir}
}

// matchesKeyword reports whether the text, trimmed of leading whitespace,
// starts with one of the keywords. Comparison is case-insensitive. An empty
// keyword list matches nothing, so keyword-less settings yield captionless
// visuals rather than arbitrary nearby text.
func matchesKeyword(text string, keywords []string) bool {
	trimmed := strings.ToLower(strings.TrimLeft(text, " \t\r\n"))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.HasPrefix(trimmed, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// FindCaption searches the candidate elements for the best caption of a
// visual with the given bounding box. Candidates are filtered to text
// elements, then to those lying within the configured offset of the visual
// in the configured direction(s), then to those starting with a configured
// keyword. Among the survivors the closest one wins; on equal distance the
// candidate appearing earliest in the input order wins, which keeps the
// result deterministic for identical inputs.
//
// The returned slice holds the matched element's full text content, or is
// empty when nothing qualifies. Missing overlap is not an error; mixing
// units between the visual box, the candidates and the offset is.
func FindCaption(visualBox BBox, candidates []PageElement, settings CaptionSettings) ([]string, error) {
	if !settings.Direction.Valid() {
		return nil, errors.Errorf("invalid caption direction %q", settings.Direction)
	}
	maxOffset, err := settings.Offset.Resolve(visualBox.Unit)
	if err != nil {
		return nil, err
	}

	bestIdx := -1
	var bestDistance float64
	for idx, candidate := range candidates {
		if candidate.Kind != ElementText {
			continue
		}
		if !matchesKeyword(candidate.Text, settings.Keywords) {
			continue
		}
		for _, dir := range captionDirections(settings.Direction) {
			d, err := Distance(visualBox, candidate.Box, dir)
			if err != nil {
				if errors.Is(err, ErrNoOverlap) {
					continue
				}
				return nil, errors.Wrapf(err, "caption candidate %s", candidate.Box)
			}
			if d < 0 || d > maxOffset {
				continue
			}
			if bestIdx == -1 || d < bestDistance {
				bestIdx = idx
				bestDistance = d
			}
		}
	}

	if bestIdx == -1 {
		return nil, nil
	}
	return []string{candidates[bestIdx].Text}, nil
}
