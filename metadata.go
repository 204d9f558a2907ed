package pdffigures

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInconsistentMetadata indicates the aggregate's visual count no longer
// matches its documents. It points at a bug in this package and must abort
// the run before corrupt metadata is persisted.
var ErrInconsistentMetadata = errors.New("metadata invariant violated: total visuals does not match documents")

// FilePath is a file location split into a root path and a path relative to
// it, so whole result sets can be relocated by swapping the root.
type FilePath struct {
	Root string `json:"root_path"`
	File string `json:"file_path"`
}

// FullPath joins the root and relative parts.
func (p FilePath) FullPath() string {
	return filepath.Join(p.Root, p.File)
}

func (p FilePath) String() string {
	return p.FullPath()
}

// Visual is one detected figure. It is created by a detector the moment a
// qualifying image region is confirmed and is immutable afterwards, except
// for the stored location which the storage collaborator sets exactly once.
type Visual struct {
	// ID is a globally unique identifier generated at detection time.
	ID string `json:"id"`
	// DocumentID is a non-owning back-reference into the aggregate; resolve
	// it with Metadata.DocumentByID.
	DocumentID string `json:"document_id"`
	// DocumentPage is the 1-based page the visual was found on.
	DocumentPage int `json:"document_page"`
	// Box is the visual's bounding box, tagged point for the layout
	// strategy and pixel for the OCR strategy.
	Box BBox `json:"bbox"`
	// Caption holds the matched caption line(s); empty when no candidate
	// qualified.
	Caption []string `json:"caption,omitempty"`
	// VisualType is an optional classification (photo, drawing, map, ...).
	VisualType string `json:"visual_type,omitempty"`
	// StoredLocation is where the cropped image was written; nil until the
	// storage collaborator reports it.
	StoredLocation *FilePath `json:"location,omitempty"`
}

// NewVisual creates a visual with a fresh identifier.
func NewVisual(documentID string, page int, box BBox) *Visual {
	return &Visual{
		ID:           uuid.New().String(),
		DocumentID:   documentID,
		DocumentPage: page,
		Box:          box,
	}
}

// SetStoredLocation records where the cropped image was written. The
// location can only be set once.
func (v *Visual) SetStoredLocation(location FilePath) error {
	if v.StoredLocation != nil {
		return errors.Errorf("stored location already set for visual %s", v.ID)
	}
	v.StoredLocation = &location
	return nil
}

// Document is one source file and the ordered visuals detected in it.
type Document struct {
	ID       string    `json:"id"`
	Location FilePath  `json:"location"`
	Visuals  []*Visual `json:"visuals,omitempty"`
}

// NewDocument creates a document record for a source file.
func NewDocument(location FilePath) *Document {
	return &Document{
		ID:       uuid.New().String(),
		Location: location,
	}
}

// EntryInfo is descriptive metadata about the repository entry the
// documents belong to, typically read from a MODS file. The core passes it
// through to output artifacts unchanged.
type EntryInfo struct {
	Identifier     string   `json:"identifier,omitempty"`
	Title          string   `json:"title,omitempty"`
	Abstract       string   `json:"abstract,omitempty"`
	Creators       []Person `json:"creators,omitempty"`
	SubmissionDate string   `json:"submission_date,omitempty"`
	Subjects       []string `json:"subjects,omitempty"`
}

// Person is a named contributor with a role.
type Person struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Metadata aggregates the documents and visuals of one pipeline run. It is
// owned exclusively by the run: it is not safe for concurrent mutation, and
// callers parallelizing across documents must serialize AddDocument and
// AddVisual behind a single writer.
type Metadata struct {
	Entry        *EntryInfo  `json:"entry,omitempty"`
	Documents    []*Document `json:"documents"`
	TotalVisuals int         `json:"total_visuals"`
}

// NewMetadata creates an empty aggregate.
func NewMetadata() *Metadata {
	return &Metadata{}
}

// check recomputes the visual count and verifies the aggregate invariant.
// It runs after every mutating operation.
func (m *Metadata) check() error {
	total := 0
	for _, doc := range m.Documents {
		total += len(doc.Visuals)
	}
	if m.TotalVisuals != total {
		return errors.Wrapf(ErrInconsistentMetadata, "recorded %d, counted %d", m.TotalVisuals, total)
	}
	return nil
}

// AddDocument appends a document (and any visuals it already carries) to
// the aggregate.
func (m *Metadata) AddDocument(doc *Document) error {
	if doc == nil {
		return errors.New("document must not be nil")
	}
	m.Documents = append(m.Documents, doc)
	m.TotalVisuals += len(doc.Visuals)
	return m.check()
}

// AddVisual appends a visual to the document it back-references.
func (m *Metadata) AddVisual(v *Visual) error {
	if v == nil {
		return errors.New("visual must not be nil")
	}
	doc := m.DocumentByID(v.DocumentID)
	if doc == nil {
		return errors.Errorf("visual %s references unknown document %s", v.ID, v.DocumentID)
	}
	doc.Visuals = append(doc.Visuals, v)
	m.TotalVisuals++
	return m.check()
}

// DocumentByID resolves a visual's back-reference. Returns nil when the
// document is not part of the aggregate.
func (m *Metadata) DocumentByID(id string) *Document {
	for _, doc := range m.Documents {
		if doc.ID == id {
			return doc
		}
	}
	return nil
}

// Visuals returns the flattened sequence of all visuals in document order.
func (m *Metadata) Visuals() []*Visual {
	var visuals []*Visual
	for _, doc := range m.Documents {
		visuals = append(visuals, doc.Visuals...)
	}
	return visuals
}

// MergeFromExisting prepends a previously persisted aggregate, so re-running
// a pipeline against the same output location preserves earlier documents
// and visuals and appends the new ones. No record is ever dropped. Entry
// metadata from the prior run is kept unless the current run set its own.
func (m *Metadata) MergeFromExisting(prior *Metadata) error {
	if prior == nil {
		return nil
	}
	if err := prior.check(); err != nil {
		return errors.Wrap(err, "prior metadata is inconsistent")
	}
	m.Documents = append(append([]*Document{}, prior.Documents...), m.Documents...)
	m.TotalVisuals += prior.TotalVisuals
	if m.Entry == nil {
		m.Entry = prior.Entry
	}
	return m.check()
}

// SaveJSON writes the aggregate as structured JSON.
func (m *Metadata) SaveJSON(path string) error {
	if err := m.check(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to encode metadata")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "failed to write metadata JSON")
}

// csvHeader is the column layout of the flattened tabular projection.
var csvHeader = []string{
	"visual_id", "document", "document_page",
	"x0", "y0", "x1", "y1", "bbox_units",
	"caption", "visual_type", "stored_location",
}

// SaveCSV writes the flattened tabular projection: one row per visual with
// document, page, bounding box, caption and storage location.
func (m *Metadata) SaveCSV(path string) error {
	if err := m.check(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create metadata CSV")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	for _, doc := range m.Documents {
		for _, v := range doc.Visuals {
			location := ""
			if v.StoredLocation != nil {
				location = v.StoredLocation.FullPath()
			}
			row := []string{
				v.ID,
				doc.Location.FullPath(),
				strconv.Itoa(v.DocumentPage),
				formatCoord(v.Box.X0), formatCoord(v.Box.Y0),
				formatCoord(v.Box.X1), formatCoord(v.Box.Y1),
				string(v.Box.Unit),
				strings.Join(v.Caption, "; "),
				v.VisualType,
				location,
			}
			if err := w.Write(row); err != nil {
				return errors.Wrap(err, "failed to write CSV row")
			}
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "failed to flush metadata CSV")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LoadMetadata reads a previously persisted aggregate, verifying its
// invariant before handing it back.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read metadata file %s", path)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "failed to parse metadata file %s", path)
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}
