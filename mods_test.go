package pdffigures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMODS = `<?xml version="1.0" encoding="UTF-8"?>
<mods xmlns="http://www.loc.gov/mods/v3" version="3.4">
	<titleInfo>
		<title>Adaptive reuse of industrial heritage</title>
	</titleInfo>
	<abstract>A study of conversion strategies for harbour warehouses.</abstract>
	<name type="personal">
		<namePart>Jansen</namePart>
		<namePart>P.</namePart>
		<role><roleTerm type="text">author</roleTerm></role>
	</name>
	<name type="personal">
		<namePart>de Vries, K.</namePart>
		<role><roleTerm type="text">mentor</roleTerm></role>
	</name>
	<originInfo>
		<dateOther type="submission">2021-06-30</dateOther>
	</originInfo>
	<subject><topic>architecture</topic></subject>
	<subject><topic>industrial heritage</topic></subject>
	<identifier type="uri">uuid:1f2a9c</identifier>
</mods>`

func TestParseMODS(t *testing.T) {
	entry, err := parseMODS([]byte(sampleMODS))
	require.NoError(t, err)

	assert.Equal(t, "Adaptive reuse of industrial heritage", entry.Title)
	assert.Equal(t, "A study of conversion strategies for harbour warehouses.", entry.Abstract)
	assert.Equal(t, "uuid:1f2a9c", entry.Identifier)
	assert.Equal(t, "2021-06-30", entry.SubmissionDate)
	assert.Equal(t, []string{"architecture", "industrial heritage"}, entry.Subjects)

	require.Len(t, entry.Creators, 2)
	assert.Equal(t, Person{Name: "Jansen, P.", Role: "author"}, entry.Creators[0])
	assert.Equal(t, Person{Name: "de Vries, K.", Role: "mentor"}, entry.Creators[1])
}

func TestParseMODSPrefersIssuedDate(t *testing.T) {
	entry, err := parseMODS([]byte(`<mods>
		<originInfo>
			<dateIssued>2020-01-15</dateIssued>
			<dateOther type="submission">2019-12-01</dateOther>
		</originInfo>
	</mods>`))
	require.NoError(t, err)
	assert.Equal(t, "2020-01-15", entry.SubmissionDate)
}

func TestParseMODSEmptyRecord(t *testing.T) {
	entry, err := parseMODS([]byte(`<mods></mods>`))
	require.NoError(t, err)
	assert.Empty(t, entry.Title)
	assert.Empty(t, entry.Creators)
	assert.Empty(t, entry.Subjects)
}

func TestParseMODSInvalidXML(t *testing.T) {
	_, err := parseMODS([]byte(`not xml at all`))
	assert.Error(t, err)
}

func TestParseMODSFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00001_mods.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleMODS), 0644))

	entry, err := ParseMODS(path)
	require.NoError(t, err)
	assert.Equal(t, "Adaptive reuse of industrial heritage", entry.Title)

	_, err = ParseMODS(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}
