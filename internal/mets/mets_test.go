package mets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOAIRecord(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "oai_record.xml"))
	require.NoError(t, err)

	doc, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, Metadata{
		Title:     "Beschreibung der Stadt Zürich",
		Subtitle:  "mit Kupfern",
		Author:    "Vogel, Salomon",
		Publisher: "Orell, Gessner",
		Date:      "1780",
		Language:  "ger",
		Extent:    "264 S.",
		DOI:       "10.3931/e-rara-12345",
		License:   "pdm",
	}, doc.Metadata)

	require.Len(t, doc.Files, 3)
	alto := doc.Files["ALTO24224396"]
	assert.Equal(t, "FULLTEXT", alto.Use)
	assert.Equal(t, "text/xml", alto.MIMEType)
	assert.Equal(t, "https://www.e-rara.ch/download/fulltext/alto3/24224396", alto.Href)

	require.Len(t, doc.Pages, 2, "only page divs of the physical map")
	assert.Equal(t, Page{
		ID:      "phys24224396",
		Label:   "[Titelblatt]",
		Order:   1,
		FileIDs: []string{"IMG_DEFAULT_24224396", "ALTO24224396"},
	}, doc.Pages[0])
	assert.Equal(t, 2, doc.Pages[1].Order)

	files := doc.PageFiles(doc.Pages[0])
	require.Len(t, files, 2)
	assert.Equal(t, "DEFAULT", files[0].Use)
}

func TestParseBareMETS(t *testing.T) {
	doc, err := Parse([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?>
<mets xmlns="http://www.loc.gov/METS/" xmlns:xlink="http://www.w3.org/1999/xlink">
  <fileSec>
    <fileGrp USE="FULLTEXT">
      <fileGrp>
        <file ID="F1"><FLocat xlink:href=" https://example.org/1.xml "/></file>
        <file ID="F2"/>
      </fileGrp>
    </fileGrp>
  </fileSec>
  <structMap TYPE="physical">
    <div TYPE="page" ORDER="x" ID="p1"><fptr FILEID="F1"/><fptr FILEID="missing"/></div>
  </structMap>
</mets>`))
	require.NoError(t, err)

	assert.Equal(t, Metadata{}, doc.Metadata)
	require.Len(t, doc.Files, 1, "files without a location are skipped")
	assert.Equal(t, File{ID: "F1", Href: "https://example.org/1.xml", Use: "FULLTEXT"}, doc.Files["F1"])

	require.Len(t, doc.Pages, 1)
	assert.Zero(t, doc.Pages[0].Order, "unparsable order")
	assert.Len(t, doc.PageFiles(doc.Pages[0]), 1)
}

func TestParseRejectsOtherDocuments(t *testing.T) {
	_, err := Parse([]byte(`<OAI-PMH><error code="idDoesNotExist"/></OAI-PMH>`))
	assert.ErrorIs(t, err, ErrNotMETS)

	_, err = Parse([]byte(`<mets><unclosed>`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotMETS)
}
