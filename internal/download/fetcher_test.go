package download_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/handiism/bookget/internal/download"
	dlmocks "github.com/handiism/bookget/internal/download/mocks"
	"github.com/handiism/bookget/internal/http"
	"github.com/handiism/bookget/internal/logger"
	"github.com/handiism/bookget/internal/retry"
)

func testPolicy(t *testing.T, attempts int) *retry.Policy {
	t.Helper()
	p, err := retry.New(attempts, time.Millisecond, 2*time.Millisecond, 2)
	require.NoError(t, err)
	return p.WithLogger(logger.Discard())
}

func TestFetchSkipsExistingDestination(t *testing.T) {
	ctrl := gomock.NewController(t)
	getter := dlmocks.NewMockGetter(ctrl) // no calls expected

	dest := filepath.Join(t.TempDir(), "0001.jpg")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	f := download.NewHTTPFetcher(getter, testPolicy(t, 3), logger.Discard())
	res, err := f.Fetch(context.Background(), "http://example.org/1.jpg", dest, nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	data, _ := os.ReadFile(dest)
	assert.Equal(t, "old", string(data))
}

func TestFetchWritesFileAndCreatesDirectories(t *testing.T) {
	ctrl := gomock.NewController(t)
	getter := dlmocks.NewMockGetter(ctrl)
	getter.EXPECT().
		Get(gomock.Any(), "http://example.org/1.jpg", map[string]string{"Referer": "r"}).
		Return([]byte("jpeg-bytes"), nil)

	dir := t.TempDir()
	dest := filepath.Join(dir, "images", "0001.jpg")

	f := download.NewHTTPFetcher(getter, testPolicy(t, 3), logger.Discard())
	res, err := f.Fetch(context.Background(), "http://example.org/1.jpg", dest, map[string]string{"Referer": "r"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.EqualValues(t, len("jpeg-bytes"), res.Bytes)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	getter := dlmocks.NewMockGetter(ctrl)
	netErr := &http.NetworkError{URL: "u", Err: errors.New("connection reset")}
	gomock.InOrder(
		getter.EXPECT().Get(gomock.Any(), "u", gomock.Any()).Return(nil, netErr),
		getter.EXPECT().Get(gomock.Any(), "u", gomock.Any()).Return(nil, netErr),
		getter.EXPECT().Get(gomock.Any(), "u", gomock.Any()).Return([]byte("ok"), nil),
	)

	dest := filepath.Join(t.TempDir(), "0001.jpg")
	f := download.NewHTTPFetcher(getter, testPolicy(t, 3), logger.Discard())
	_, err := f.Fetch(context.Background(), "u", dest, nil)
	require.NoError(t, err)
}

func TestFetchExhaustedRetriesLeaveNoFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	getter := dlmocks.NewMockGetter(ctrl)
	netErr := &http.NetworkError{URL: "u", Err: errors.New("timeout")}
	getter.EXPECT().Get(gomock.Any(), "u", gomock.Any()).Return(nil, netErr).Times(3)

	dest := filepath.Join(t.TempDir(), "0001.jpg")
	f := download.NewHTTPFetcher(getter, testPolicy(t, 3), logger.Discard())
	_, err := f.Fetch(context.Background(), "u", dest, nil)

	assert.Same(t, netErr, err)
	assert.Equal(t, download.KindNetwork, download.Classify(err))
	assert.NoFileExists(t, dest)
}

func TestFetchDoesNotRetryStatusErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	getter := dlmocks.NewMockGetter(ctrl)
	getter.EXPECT().Get(gomock.Any(), "u", gomock.Any()).
		Return(nil, &http.StatusError{URL: "u", Code: 500}).Times(1)

	dest := filepath.Join(t.TempDir(), "0001.jpg")
	f := download.NewHTTPFetcher(getter, testPolicy(t, 5), logger.Discard())
	_, err := f.Fetch(context.Background(), "u", dest, nil)

	var se *http.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.Code)
	assert.Equal(t, download.KindHTTPStatus, download.Classify(err))
	assert.NoFileExists(t, dest)
}

func TestFetchFilesystemError(t *testing.T) {
	ctrl := gomock.NewController(t)
	getter := dlmocks.NewMockGetter(ctrl)

	// parent "directory" is a regular file
	blocker := filepath.Join(t.TempDir(), "images")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	f := download.NewHTTPFetcher(getter, testPolicy(t, 3), logger.Discard())
	_, err := f.Fetch(context.Background(), "u", filepath.Join(blocker, "0001.jpg"), nil)

	var fsErr *download.FilesystemError
	require.True(t, errors.As(err, &fsErr))
	assert.Equal(t, download.KindFilesystem, download.Classify(err))
}
