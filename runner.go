package pdffigures

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// defaultEntryID is used when no MODS file provides one.
const defaultEntryID = "00000"

// RunConfig describes one pipeline run over a directory of PDF files.
type RunConfig struct {
	// DataDir is the directory scanned for PDF files.
	DataDir string
	// OutputDir receives the per-entry output directory with cropped
	// visuals, metadata artifacts and the run log.
	OutputDir string
	// MetadataFile is an optional MODS file with descriptive metadata. Its
	// file name also supplies the entry identifier and, unless IgnoreID is
	// set, a prefix filter on the PDF file names.
	MetadataFile string
	// IgnoreID disables the MODS-derived prefix filter so every PDF in the
	// data directory is processed.
	IgnoreID bool
	// Strategy selects the detection strategy for the run.
	Strategy Strategy
	// Settings are the effective recognized options.
	Settings Settings
}

// RunResult reports what a run produced.
type RunResult struct {
	EntryID      string
	EntryDir     string
	Metadata     *Metadata
	Failed       []string // paths of documents that could not be processed
	MetadataJSON string
	MetadataCSV  string
}

// Runner processes batches of PDF files and persists the run artifacts:
// metadata JSON, the flattened CSV, a settings snapshot and a log file.
// A runner owns its Metadata aggregate exclusively for the duration of a
// run; Run is not safe for concurrent invocation on one Runner.
type Runner struct {
	extractor *Extractor
}

// NewRunner wraps an extractor for batch processing.
func NewRunner(extractor *Extractor) *Runner {
	return &Runner{extractor: extractor}
}

// Run processes every matching PDF in the data directory. Individual
// document failures are logged and collected in the result; they do not
// abort the batch. The metadata artifact is written even when some
// documents failed. When the output location already holds metadata from a
// previous run, the new documents are appended to it.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if !cfg.Strategy.Valid() {
		return nil, errors.Errorf("unknown strategy %q", cfg.Strategy)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}

	entryID := defaultEntryID
	prefix := ""
	if cfg.MetadataFile != "" {
		stem := strings.TrimSuffix(filepath.Base(cfg.MetadataFile), filepath.Ext(cfg.MetadataFile))
		entryID = strings.SplitN(stem, "_", 2)[0]
		if !cfg.IgnoreID {
			prefix = entryID
		}
	}

	entryDir := filepath.Join(cfg.OutputDir, entryID)
	if err := os.MkdirAll(entryDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create entry directory")
	}

	logger, closeLog, err := newRunLogger(filepath.Join(entryDir, entryID+".log"))
	if err != nil {
		return nil, err
	}
	defer closeLog()
	r.extractor.WithLogger(logger)

	logger.Info("starting pipeline", "strategy", cfg.Strategy, "entry", entryID)

	meta := NewMetadata()
	if cfg.MetadataFile != "" {
		entry, err := ParseMODS(cfg.MetadataFile)
		if err != nil {
			logger.Warn("failed to parse MODS file", "file", cfg.MetadataFile, "error", err)
		} else {
			meta.Entry = entry
		}
	}

	// Re-runs against the same output location extend the prior aggregate
	// instead of replacing it.
	jsonPath := filepath.Join(entryDir, entryID+"-metadata.json")
	if prior, err := LoadMetadata(jsonPath); err == nil {
		if err := meta.MergeFromExisting(prior); err != nil {
			return nil, err
		}
		logger.Info("merged metadata from previous run",
			"documents", len(prior.Documents),
			"visuals", prior.TotalVisuals)
	}

	pdfFiles, err := findPDFFiles(cfg.DataDir, prefix)
	if err != nil {
		return nil, err
	}
	logger.Info("found PDF files", "count", len(pdfFiles))

	result := &RunResult{
		EntryID:  entryID,
		EntryDir: entryDir,
		Metadata: meta,
	}
	for i, pdf := range pdfFiles {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		storage := FileStorage{
			Root:   entryDir,
			Subdir: fmt.Sprintf("pdf-%03d", i+1),
		}
		location := FilePath{Root: cfg.DataDir, File: pdf}
		logger.Info("processing document", "file", pdf)

		if _, err := r.extractor.ExtractFile(ctx, location, cfg.Strategy, storage, meta); err != nil {
			if errors.Is(err, ErrInconsistentMetadata) || errors.Is(err, context.Canceled) {
				return result, err
			}
			logger.Error("document failed", "file", pdf, "error", err)
			result.Failed = append(result.Failed, pdf)
		}
	}

	logger.Info("extraction finished",
		"documents", len(meta.Documents),
		"visuals", meta.TotalVisuals,
		"failed", len(result.Failed))

	if err := meta.SaveJSON(jsonPath); err != nil {
		return result, err
	}
	result.MetadataJSON = jsonPath

	csvPath := filepath.Join(entryDir, entryID+"-metadata.csv")
	if err := meta.SaveCSV(csvPath); err != nil {
		return result, err
	}
	result.MetadataCSV = csvPath

	if err := cfg.Settings.Save(filepath.Join(entryDir, entryID+"-settings.json")); err != nil {
		return result, err
	}

	return result, nil
}

// findPDFFiles lists the PDF files in a directory, optionally filtered by a
// file-name prefix, sorted for a stable processing order.
func findPDFFiles(dir string, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read data directory %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// newRunLogger logs to both stderr and the run's log file.
func newRunLogger(path string) (*slog.Logger, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open log file %s", path)
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, f), nil)
	return slog.New(handler), func() { f.Close() }, nil
}
