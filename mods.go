package pdffigures

import (
	"encoding/xml"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// modsRecord mirrors the subset of a MODS 3.x record the pipeline passes
// through to its output artifacts. Namespaces are ignored, so both plain
// and prefixed MODS files parse.
type modsRecord struct {
	XMLName     xml.Name   `xml:"mods"`
	Titles      []string   `xml:"titleInfo>title"`
	Abstracts   []string   `xml:"abstract"`
	Names       []modsName `xml:"name"`
	DateOther   []string   `xml:"originInfo>dateOther"`
	DateIssued  []string   `xml:"originInfo>dateIssued"`
	Subjects    []string   `xml:"subject>topic"`
	Identifiers []string   `xml:"identifier"`
}

type modsName struct {
	Parts []string `xml:"namePart"`
	Role  string   `xml:"role>roleTerm"`
}

// ParseMODS reads descriptive metadata from a MODS XML file. The result is
// opaque to detection; it only travels along into the persisted metadata.
func ParseMODS(path string) (*EntryInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read MODS file %s", path)
	}
	return parseMODS(data)
}

func parseMODS(data []byte) (*EntryInfo, error) {
	var record modsRecord
	if err := xml.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(err, "failed to parse MODS XML")
	}

	entry := &EntryInfo{
		Title:          first(record.Titles),
		Abstract:       first(record.Abstracts),
		Identifier:     first(record.Identifiers),
		SubmissionDate: first(append(record.DateIssued, record.DateOther...)),
		Subjects:       compact(record.Subjects),
	}
	for _, name := range record.Names {
		fullName := strings.TrimSpace(strings.Join(name.Parts, ", "))
		if fullName == "" {
			continue
		}
		entry.Creators = append(entry.Creators, Person{
			Name: fullName,
			Role: strings.TrimSpace(name.Role),
		})
	}
	return entry, nil
}

func first(values []string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
