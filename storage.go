package pdffigures

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Storage persists cropped visuals. It is invoked once per surviving
// visual; the returned location is recorded on the Visual record.
type Storage interface {
	Store(img image.Image, documentID string, page int, ordinal int) (FilePath, error)
}

// FileStorage writes cropped visuals as PNG files under a root directory,
// one subdirectory per document.
type FileStorage struct {
	// Root is the output directory; stored locations are relative to it.
	Root string
	// Subdir is the per-document directory name, e.g. "pdf-001".
	Subdir string
}

// Store writes the image and returns its location. The file name embeds the
// page and a per-page ordinal, so repeated visuals on one page stay
// distinct.
func (s FileStorage) Store(img image.Image, documentID string, page int, ordinal int) (FilePath, error) {
	relative := filepath.Join(s.Subdir, fmt.Sprintf("page%03d-%02d.png", page, ordinal))
	full := filepath.Join(s.Root, relative)

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return FilePath{}, errors.Wrap(err, "failed to create storage directory")
	}
	f, err := os.Create(full)
	if err != nil {
		return FilePath{}, errors.Wrapf(err, "failed to create %s", full)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return FilePath{}, errors.Wrapf(err, "failed to encode %s", full)
	}
	return FilePath{Root: s.Root, File: relative}, nil
}
