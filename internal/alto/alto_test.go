package alto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestParse(t *testing.T) {
	doc, err := Parse(load(t, "page_v4.xml"))
	require.NoError(t, err)

	assert.Equal(t, "4.0", doc.Version)
	assert.Equal(t, "pixel", doc.MeasurementUnit)
	assert.Equal(t, []string{"OCR_0"}, doc.OCRProcessing)

	page := doc.Page
	assert.Equal(t, "P1", page.ID)
	assert.Equal(t, 2400, page.Width)
	assert.Equal(t, 3600, page.Height)
	assert.Equal(t, 1, page.PhysicalImageNumber)
	require.Len(t, page.Blocks, 2, "composed blocks are flattened")

	b := page.Blocks[0]
	assert.Equal(t, Box{HPos: 200, VPos: 300, Width: 2000, Height: 200}, b.Box)
	require.Len(t, b.Lines, 2)
	assert.Equal(t, 200, b.Lines[1].HPos, "decimal coordinates are truncated")

	word := b.Lines[0].Strings[0]
	assert.Equal(t, "Beschreibung", word.Content)
	assert.InDelta(t, 0.97, word.Confidence, 1e-9)
	assert.Zero(t, b.Lines[1].Strings[0].Confidence)

	assert.Equal(t, "Beschreibung der\nStadt\n\nZürich", doc.Text())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`<html><body/></html>`))
	assert.ErrorIs(t, err, ErrNotALTO)

	_, err = Parse([]byte(`<alto xmlns="http://www.loc.gov/standards/alto/ns-v3#"><Description/></alto>`))
	assert.ErrorIs(t, err, ErrNoLayout)

	_, err = Parse([]byte(`<alto>`))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	tests := map[string]string{
		"http://www.loc.gov/standards/alto/ns-v4#": "4.0",
		"http://www.loc.gov/standards/alto/ns-v3#": "3.0",
		"http://www.loc.gov/standards/alto/ns-v2#": "2.0",
		"http://schema.ccs-gmbh.com/ALTO":          "",
	}
	for ns, want := range tests {
		assert.Equal(t, want, Version(ns), ns)
	}
	assert.Empty(t, Version(""))

	doc, err := Parse([]byte(`<alto xmlns="http://www.loc.gov/standards/alto/ns-v2#"><Layout><Page/></Layout></alto>`))
	require.NoError(t, err)
	assert.Equal(t, "2.0", doc.Version)
	assert.Empty(t, doc.Text())
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText(load(t, "page_v4.xml"))
	require.NoError(t, err)
	assert.Equal(t, "Beschreibung der Stadt Zürich", text)

	_, err = ExtractText([]byte(`<alto><Layout>`))
	assert.Error(t, err)
}
