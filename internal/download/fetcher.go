//go:generate mockgen -destination=./mocks/download.go . Fetcher,Getter
package download

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	ioutils "github.com/handiism/bookget/internal/io"
	"github.com/handiism/bookget/internal/logger"
	"github.com/handiism/bookget/internal/retry"
)

// Fetcher moves one URL to one destination path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, headers map[string]string) (FetchResult, error)
}

// Getter performs a single GET. *http.Client implements it.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// FetchResult describes a successful fetch.
type FetchResult struct {
	Skipped bool
	Bytes   int64
}

// HTTPFetcher is the Fetcher used in production. A destination that already
// exists is reported as Skipped without touching the network; otherwise the
// body is fetched under the retry policy, held in memory, and written
// atomically so dest is either absent or complete.
type HTTPFetcher struct {
	client Getter
	policy *retry.Policy
	logger *slog.Logger
}

// NewHTTPFetcher creates an HTTPFetcher. A nil logger uses the global one.
func NewHTTPFetcher(client Getter, policy *retry.Policy, l *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: client,
		policy: policy,
		logger: logger.Or(l),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string, headers map[string]string) (FetchResult, error) {
	if _, err := os.Stat(dest); err == nil {
		f.logger.Debug("skipping existing file", "dest", dest)
		return FetchResult{Skipped: true}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return FetchResult{}, &FilesystemError{Op: "stat", Path: dest, Err: err}
	}

	if err := ioutils.EnsureDir(filepath.Dir(dest)); err != nil {
		return FetchResult{}, &FilesystemError{Op: "mkdir", Path: filepath.Dir(dest), Err: err}
	}

	body, err := retry.Do(ctx, f.policy, func(ctx context.Context) ([]byte, error) {
		return f.client.Get(ctx, url, headers)
	})
	if err != nil {
		return FetchResult{}, err
	}

	if err := ioutils.WriteFileAtomic(dest, body, 0644); err != nil {
		return FetchResult{}, &FilesystemError{Op: "write", Path: dest, Err: err}
	}

	f.logger.Debug("downloaded", "url", url, "dest", dest, "bytes", len(body))
	return FetchResult{Bytes: int64(len(body))}, nil
}
