package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	tempDir := t.TempDir()
	sourceDir := filepath.Join(tempDir, "book")

	testFiles := map[string]string{
		"ro-crate-metadata.json": `{"@graph":[]}`,
		"images/0001.jpg":        "jpeg",
		"ocr/alto/0001.xml":      "<alto/>",
	}
	for path, content := range testFiles {
		fullPath := filepath.Join(sourceDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))
	}

	ctx := context.Background()
	archivePath := filepath.Join(tempDir, "out", "book"+Ext)
	require.NoError(t, Create(ctx, sourceDir, archivePath))

	names, err := List(ctx, archivePath)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"book/ro-crate-metadata.json",
		"book/images/0001.jpg",
		"book/ocr/alto/0001.xml",
	}, names)

	leftovers, err := filepath.Glob(filepath.Join(tempDir, "out", ".*.part"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCreateMissingSource(t *testing.T) {
	tempDir := t.TempDir()
	archivePath := filepath.Join(tempDir, "missing"+Ext)

	err := Create(context.Background(), filepath.Join(tempDir, "missing"), archivePath)
	assert.Error(t, err)
	_, statErr := os.Stat(archivePath)
	assert.True(t, os.IsNotExist(statErr))
}
