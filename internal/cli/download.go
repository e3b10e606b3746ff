package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/handler"
	"github.com/handiism/bookget/internal/model"
	"github.com/handiism/bookget/internal/progress"
)

// downloadFlags are shared by download and batch. Only flags set on the
// command line override the loaded settings.
type downloadFlags struct {
	handler     string
	downloadDir string
	concurrency int
	maxBooks    int
	sleep       float64
	pageRange   string
	volumeRange string
	skipOCR     bool
	skipImages  bool
	archive     bool
	noThumbnail bool
	noProgress  bool

	maxAttempts int
	timeout     float64
	proxy       string
	cookieFile  string
	headerFile  string
	userAgent   string
	verifySSL   bool
	noHTTP2     bool

	iiifQuality  string
	iiifFormat   string
	iiifRegion   string
	iiifRotation int
	iiifMaxSize  int
}

func (f *downloadFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.handler, "handler", handler.AutoName, `handler used to read the URL, "auto" detects it`)
	flags.StringVarP(&f.downloadDir, "download-dir", "d", "", "directory books are saved under")
	flags.IntVarP(&f.concurrency, "concurrency", "c", 0, "parallel downloads per book")
	flags.IntVar(&f.maxBooks, "max-books", 0, "books downloaded at the same time")
	flags.Float64Var(&f.sleep, "sleep", 0, "seconds to wait after each download")
	flags.StringVarP(&f.pageRange, "pages", "p", "", `page range, e.g. "4:434" or "10"`)
	flags.StringVar(&f.volumeRange, "volumes", "", `volume range of a IIIF collection, e.g. "2:3"`)
	flags.BoolVar(&f.skipOCR, "skip-ocr", false, "do not download OCR files")
	flags.BoolVar(&f.skipImages, "skip-images", false, "do not download page images")
	flags.BoolVar(&f.archive, "archive", false, "zip each book after downloading")
	flags.BoolVar(&f.noThumbnail, "no-thumbnail", false, "do not create metadata/thumbnail.jpg")
	flags.BoolVar(&f.noProgress, "no-progress", false, "hide the progress bar")

	flags.IntVar(&f.maxAttempts, "max-attempts", 0, "attempts per file, including the first")
	flags.Float64Var(&f.timeout, "timeout", 0, "request timeout in seconds")
	flags.StringVar(&f.proxy, "proxy", "", "proxy URL (default: HTTPS_PROXY / HTTP_PROXY)")
	flags.StringVar(&f.cookieFile, "cookie", "", "Netscape cookie file")
	flags.StringVar(&f.headerFile, "header-file", "", `file of "Name: value" request headers`)
	flags.StringVar(&f.userAgent, "user-agent", "", "User-Agent header")
	flags.BoolVar(&f.verifySSL, "verify-ssl", false, "verify TLS certificates")
	flags.BoolVar(&f.noHTTP2, "no-http2", false, "disable HTTP/2")

	flags.StringVar(&f.iiifQuality, "iiif-quality", "", "IIIF image quality (default, color, gray, bitonal)")
	flags.StringVar(&f.iiifFormat, "iiif-format", "", "IIIF image format (jpg, png, tif, webp)")
	flags.StringVar(&f.iiifRegion, "iiif-region", "", "IIIF image region")
	flags.IntVar(&f.iiifRotation, "iiif-rotation", 0, "IIIF image rotation in degrees")
	flags.IntVar(&f.iiifMaxSize, "iiif-max-size", 0, "longest image edge in pixels, 0 for full size")
}

// apply copies the flags given on the command line into a copy of base and
// validates the result.
func (f *downloadFlags) apply(cmd *cobra.Command, base *config.Settings) (*config.Settings, error) {
	s := *base
	changed := cmd.Flags().Changed

	if changed("download-dir") {
		s.DownloadDir = f.downloadDir
	}
	if changed("concurrency") {
		s.Concurrency = f.concurrency
	}
	if changed("max-books") {
		s.MaxConcurrentBooks = f.maxBooks
	}
	if changed("sleep") {
		s.SleepInterval = f.sleep
	}
	if changed("pages") {
		s.PageRange = f.pageRange
	}
	if changed("volumes") {
		s.VolumeRange = f.volumeRange
	}
	if changed("skip-ocr") {
		s.SkipOCR = f.skipOCR
	}
	if changed("skip-images") {
		s.SkipImages = f.skipImages
	}
	if changed("archive") {
		s.Archive = f.archive
	}
	if changed("no-thumbnail") {
		s.Thumbnail = !f.noThumbnail
	}
	if changed("no-progress") {
		s.ShowProgress = !f.noProgress
	}
	if changed("max-attempts") {
		s.MaxAttempts = f.maxAttempts
	}
	if changed("timeout") {
		s.Timeout = f.timeout
	}
	if changed("proxy") {
		s.Proxy = f.proxy
	}
	if changed("cookie") {
		s.CookieFile = f.cookieFile
	}
	if changed("header-file") {
		s.HeaderFile = f.headerFile
	}
	if changed("user-agent") {
		s.UserAgent = f.userAgent
	}
	if changed("verify-ssl") {
		s.VerifySSL = f.verifySSL
	}
	if changed("no-http2") {
		s.HTTP2 = !f.noHTTP2
	}
	if changed("iiif-quality") {
		s.IIIFQuality = f.iiifQuality
	}
	if changed("iiif-format") {
		s.IIIFFormat = f.iiifFormat
	}
	if changed("iiif-region") {
		s.IIIFRegion = f.iiifRegion
	}
	if changed("iiif-rotation") {
		s.IIIFRotation = f.iiifRotation
	}
	if changed("iiif-max-size") {
		s.IIIFMaxSize = f.iiifMaxSize
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func newDownloadCmd(opts *globalOptions) *cobra.Command {
	flags := &downloadFlags{}

	cmd := &cobra.Command{
		Use:   "download URL [URL...]",
		Short: "Download one or more books",
		Long: `Download the books described by the given manifest URLs.

Each book is saved to <download-dir>/<domain>/<slug>/ with images/,
ocr/alto/, ocr/text/ and metadata/ below it, plus ro-crate-metadata.json.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.apply(cmd, opts.settings)
			if err != nil {
				return err
			}
			return runDownload(cmd.Context(), cmd, opts, settings, flags.handler, args)
		},
	}
	flags.register(cmd)

	return cmd
}

func newBatchCmd(opts *globalOptions) *cobra.Command {
	flags := &downloadFlags{}

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Download every URL listed in a file",
		Long: `Download every http(s) URL listed in FILE, one per line.
Blank lines and lines starting with # are ignored. Use "-" to read
from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.apply(cmd, opts.settings)
			if err != nil {
				return err
			}

			urls, err := readURLs(cmd, args[0])
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return fmt.Errorf("no URLs found in %s", args[0])
			}
			return runDownload(cmd.Context(), cmd, opts, settings, flags.handler, urls)
		},
	}
	flags.register(cmd)

	return cmd
}

func readURLs(cmd *cobra.Command, name string) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return handler.ParseURLs(string(data)), nil
}

func runDownload(ctx context.Context, cmd *cobra.Command, opts *globalOptions, settings *config.Settings, handlerName string, urls []string) error {
	errOut := cmd.ErrOrStderr()

	runner, err := handler.NewRunnerFromSettings(settings, func(e handler.ProgressEvent) {
		if e.Level == handler.LevelVerbose && !opts.verbose {
			return
		}
		fmt.Fprintln(errOut, levelPrefix(e.Level)+e.Message)
	})
	if err != nil {
		return err
	}
	defer runner.Close()

	if _, err := runner.Registry().Resolve(handlerName, urls[0]); err != nil {
		return err
	}

	tracker := progress.NewTracker()
	observer := progress.Observer(tracker)
	// one bar cannot follow several books at once
	if settings.ShowProgress && (len(urls) == 1 || settings.MaxConcurrentBooks == 1) {
		observer = progress.Multi(tracker, progress.NewBar(errOut))
	}
	runner.WithObserver(observer)

	results := runner.Batch(ctx, handlerName, urls)

	if err := render(cmd.OutOrStdout(), opts.outputFormat, results, func(w io.Writer) error {
		return printResults(w, results, tracker.Snapshot())
	}); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d book(s) failed", failed, len(results))
	}
	return nil
}

func printResults(w io.Writer, results []*model.Result, snap progress.Snapshot) error {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(w, "FAILED  %s\n        %s\n", r.URL, r.Error)
			continue
		}
		fmt.Fprintf(w, "OK      %s\n", r.Title)
		fmt.Fprintf(w, "        %d/%d images, %d OCR files", r.ImagesDownloaded, r.TotalPages, r.OCRFilesDownloaded)
		if r.Failed > 0 {
			fmt.Fprintf(w, ", %d failed", r.Failed)
		}
		fmt.Fprintf(w, "\n        %s\n", r.SavePath)
		if r.ArchivePath != "" {
			fmt.Fprintf(w, "        %s\n", r.ArchivePath)
		}
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
	_, err := fmt.Fprintf(w, "Complete! %d/%d files (%d already present), %s downloaded\n",
		snap.Succeeded, snap.Total, snap.Skipped, humanize.Bytes(uint64(max(snap.Bytes, 0))))
	return err
}

func levelPrefix(l handler.ProgressLevel) string {
	switch l {
	case handler.LevelError:
		return "✗ "
	case handler.LevelWarning:
		return "! "
	case handler.LevelSuccess:
		return "✓ "
	case handler.LevelInfo:
		return "› "
	default:
		return "  "
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
