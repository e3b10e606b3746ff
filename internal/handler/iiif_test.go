package handler

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	dlmocks "github.com/handiism/bookget/internal/download/mocks"
)

// newCollection serves a two volume v3 collection. Every volume has two
// direct PNG pages.
func newCollection(t *testing.T) *library {
	t.Helper()
	lib := &library{page: testPNG(t)}

	mux := stdhttp.NewServeMux()
	mux.HandleFunc("/iiif/collection/works", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		fmt.Fprint(w, strings.ReplaceAll(`{
  "@context": "http://iiif.io/api/presentation/3/context.json",
  "id": "BASE/iiif/collection/works",
  "type": "Collection",
  "label": {"en": ["Collected Works"]},
  "items": [
    {"id": "BASE/iiif/vol1/manifest", "type": "Manifest"},
    {"id": "BASE/iiif/vol2/manifest", "type": "Manifest"}
  ]
}`, "BASE", lib.URL))
	})
	for _, vol := range []string{"vol1", "vol2"} {
		mux.HandleFunc("/iiif/"+vol+"/manifest", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			fmt.Fprint(w, strings.ReplaceAll(`{
  "@context": "http://iiif.io/api/presentation/2/context.json",
  "@id": "BASE/iiif/VOL/manifest",
  "label": "VOL",
  "metadata": [{"label": "Author", "value": "Jane Doe"}, {"label": "Date", "value": "1790"}],
  "sequences": [{"canvases": [
    {"@id": "c1", "images": [{"resource": {"@id": "BASE/direct/VOL-1.png", "format": "image/png"}}]},
    {"@id": "c2", "images": [{"resource": {"@id": "BASE/direct/VOL-2.png", "format": "image/png"}}]}
  ]}]
}`, "BASE", lib.URL, "VOL", vol))
		})
		mux.HandleFunc("/direct/"+vol+"-1.png", lib.serveFile)
		mux.HandleFunc("/direct/"+vol+"-2.png", lib.serveFile)
	}
	lib.Server = httptest.NewServer(mux)
	t.Cleanup(lib.Close)
	return lib
}

func TestLoadCollectionNumbersPagesAcrossVolumes(t *testing.T) {
	lib := newCollection(t)
	url := lib.URL + "/iiif/collection/works"
	r := newTestRunner(t, testSettings(t), nil)

	source, err := r.Registry().Get(IIIFName)
	require.NoError(t, err)
	m, err := source.Load(context.Background(), url)
	require.NoError(t, err)

	book := m.Book
	assert.Equal(t, "works", book.ID)
	assert.Equal(t, "Collected Works", book.Title())
	assert.Equal(t, "Jane Doe", book.Metadata.Creator)
	assert.Equal(t, url, book.Metadata.Identifier)
	assert.Equal(t, 2, book.Volumes())
	require.Len(t, book.Pages, 4)
	for i, p := range book.Pages {
		assert.Equal(t, i+1, p.Order)
		assert.Equal(t, i/2+1, p.Volume)
	}
	assert.Equal(t, lib.URL+"/direct/vol2-1.png", book.Pages[2].ImageURL)
	assert.Contains(t, m.Documents, "collection.json")
	assert.Contains(t, m.Documents, "volume_0002.json")
}

func TestRunVolumeRange(t *testing.T) {
	lib := newCollection(t)
	url := lib.URL + "/iiif/collection/works"
	settings := testSettings(t)
	settings.VolumeRange = "2"
	settings.Thumbnail = false
	r := newTestRunner(t, settings, nil)

	res, err := r.Run(context.Background(), IIIFName, url)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 4, res.TotalPages)
	assert.Equal(t, 2, res.ImagesDownloaded)
	assert.Equal(t, int64(2), lib.files.Load(), "volume 1 is never requested")

	layout := NewLayout(settings.DownloadDir, url)
	assert.NoFileExists(t, layout.ImagePath(1, ".png"))
	assert.NoFileExists(t, layout.ImagePath(2, ".png"))
	assert.FileExists(t, layout.ImagePath(3, ".png"))
	assert.FileExists(t, layout.ImagePath(4, ".png"))
	assert.FileExists(t, filepath.Join(layout.Metadata, "collection.json"))
}

func TestRunVolumeAndPageRange(t *testing.T) {
	lib := newCollection(t)
	url := lib.URL + "/iiif/collection/works"
	settings := testSettings(t)
	settings.VolumeRange = "1:2"
	settings.PageRange = "2:3"
	settings.Thumbnail = false
	r := newTestRunner(t, settings, nil)

	res, err := r.Run(context.Background(), IIIFName, url)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ImagesDownloaded)

	layout := NewLayout(settings.DownloadDir, url)
	assert.FileExists(t, layout.ImagePath(2, ".png"))
	assert.FileExists(t, layout.ImagePath(3, ".png"))
}

func TestVolumeRangeTreatsSingleBookAsVolumeOne(t *testing.T) {
	lib := newLibrary(t)
	settings := testSettings(t)
	settings.VolumeRange = "2:3"
	settings.SkipOCR = true
	r := newTestRunner(t, settings, nil)

	res, err := r.Run(context.Background(), IIIFName, lib.manifestURL())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, lib.files.Load())
}

func TestIIIFSourceAppliesMaxSize(t *testing.T) {
	settings := testSettings(t)
	settings.IIIFMaxSize = 1000

	ctrl := gomock.NewController(t)
	client := dlmocks.NewMockGetter(ctrl)
	client.EXPECT().Get(gomock.Any(), "https://example.org/iiif/b/manifest", gomock.Any()).Return([]byte(`{
  "@context": "http://iiif.io/api/presentation/2/context.json",
  "@id": "https://example.org/iiif/b/manifest",
  "label": "Sized",
  "sequences": [{"canvases": [
    {"@id": "c1", "width": 3000, "height": 2000,
     "images": [{"resource": {"@id": "https://example.org/files/1.jpg",
       "service": {"@id": "https://example.org/image/1", "@context": "http://iiif.io/api/image/2/context.json"}}}]},
    {"@id": "c2",
     "images": [{"resource": {"@id": "https://example.org/files/2.jpg", "width": 800, "height": 900,
       "service": {"@id": "https://example.org/image/2", "@context": "http://iiif.io/api/image/2/context.json"}}}]}
  ]}]
}`), nil)

	m, err := NewIIIFSource(client, settings).Load(context.Background(), "https://example.org/iiif/b/manifest")
	require.NoError(t, err)
	require.Len(t, m.Book.Pages, 2)
	assert.Equal(t, "https://example.org/image/1/full/1000,/0/default.jpg", m.Book.Pages[0].ImageURL)
	assert.Equal(t, "https://example.org/image/2/full/full/0/default.jpg", m.Book.Pages[1].ImageURL)
}
