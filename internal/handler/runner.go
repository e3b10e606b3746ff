package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/download"
	"github.com/handiism/bookget/internal/http"
	ioutils "github.com/handiism/bookget/internal/io"
	"github.com/handiism/bookget/internal/logger"
	"github.com/handiism/bookget/internal/model"
	"github.com/handiism/bookget/internal/progress"
	"github.com/handiism/bookget/internal/retry"
)

// Runner downloads books: it loads the manifest through a Source, fetches
// OCR files and page images through the download engine, then runs the
// packagers.
type Runner struct {
	settings  *config.Settings
	registry  *Registry
	fetcher   download.Fetcher
	packagers []Packager
	observer  progress.Observer
	logger    *slog.Logger
	closer    func()

	onProgress func(ProgressEvent)
	progressMu sync.Mutex
}

// NewRunner creates a Runner. onProgress may be nil.
func NewRunner(settings *config.Settings, registry *Registry, fetcher download.Fetcher, onProgress func(ProgressEvent)) *Runner {
	return &Runner{
		settings:   settings,
		registry:   registry,
		fetcher:    fetcher,
		packagers:  DefaultPackagers(settings),
		observer:   progress.Nop{},
		logger:     logger.GetLogger(),
		onProgress: onProgress,
	}
}

// NewRunnerFromSettings wires the production stack: one HTTP client, the
// retry policy and fetcher built from settings, and a registry holding the
// default sources. Close the Runner when done.
func NewRunnerFromSettings(settings *config.Settings, onProgress func(ProgressEvent)) (*Runner, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	client, err := http.NewClient(settings)
	if err != nil {
		return nil, err
	}
	policy, err := retry.FromSettings(settings)
	if err != nil {
		client.Close()
		return nil, err
	}

	log := logger.GetLogger()
	fetcher := download.NewHTTPFetcher(client, policy.WithLogger(log), log)
	registry := NewRegistry(DefaultSources(client, settings)...)

	r := NewRunner(settings, registry, fetcher, onProgress)
	r.closer = client.Close
	return r, nil
}

// WithObserver sets the progress observer shared by every download batch.
func (r *Runner) WithObserver(o progress.Observer) *Runner {
	if o == nil {
		o = progress.Nop{}
	}
	r.observer = o
	return r
}

// WithPackagers replaces the packagers derived from settings.
func (r *Runner) WithPackagers(ps ...Packager) *Runner {
	r.packagers = ps
	return r
}

// WithLogger sets the logger. A nil logger uses the global one.
func (r *Runner) WithLogger(l *slog.Logger) *Runner {
	r.logger = logger.Or(l)
	return r
}

// Registry returns the sources the Runner dispatches to.
func (r *Runner) Registry() *Registry { return r.registry }

// Close releases the HTTP client of a Runner built by NewRunnerFromSettings.
func (r *Runner) Close() {
	if r.closer != nil {
		r.closer()
	}
}

// Run downloads the book at url with the named handler, or the detected
// one for AutoName. An unknown handler is an error; everything that goes
// wrong with the book itself is recorded in the Result.
func (r *Runner) Run(ctx context.Context, handlerName, url string) (*model.Result, error) {
	source, err := r.registry.Resolve(handlerName, url)
	if err != nil {
		return nil, err
	}

	res := &model.Result{Handler: source.Name(), URL: url}
	log := r.logger.With("handler", source.Name(), "url", url)
	r.emit(ProgressEvent{Message: fmt.Sprintf("Fetching manifest: %s", url), Level: LevelVerbose})

	manifest, err := source.Load(ctx, url)
	if err != nil {
		log.Error("failed to load manifest", "error", err)
		r.emit(ProgressEvent{Message: fmt.Sprintf("Error loading %s: %v", url, err), Level: LevelError})
		return res.Fail(err), nil
	}

	book := manifest.Book
	res.BookID = book.ID
	res.Title = book.Title()
	res.TotalPages = book.TotalPages()
	if book.TotalPages() == 0 {
		r.emit(ProgressEvent{Message: fmt.Sprintf("No pages found in %s", url), Level: LevelWarning})
		return res.Fail(model.ErrNoPages), nil
	}
	r.emit(ProgressEvent{Message: fmt.Sprintf("Found book: %s (%d pages)", book.Title(), book.TotalPages()), Level: LevelInfo})

	layout := NewLayout(r.settings.DownloadDir, url)
	if err := layout.Ensure(); err != nil {
		r.emit(ProgressEvent{Message: fmt.Sprintf("Error creating directory: %v", err), Level: LevelError})
		return res.Fail(err), nil
	}
	r.saveDocuments(log, layout, manifest.Documents)

	pages := r.selectPages(book)
	if len(pages) < len(book.Pages) {
		log.Info("filtered pages", "selected", len(pages), "total", len(book.Pages))
	}

	if r.settings.SkipOCR {
		log.Info("skipping OCR downloads")
	} else {
		report, err := r.download(ctx, log, "ocr", r.ocrTasks(book, pages, layout))
		if err != nil {
			return res.Fail(err), nil
		}
		res.OCRFilesDownloaded = report.Succeeded
		res.Failed += report.Failed
	}

	if r.settings.SkipImages {
		log.Info("skipping image downloads")
	} else {
		report, err := r.download(ctx, log, "images", r.imageTasks(book, pages, layout))
		if err != nil {
			return res.Fail(err), nil
		}
		res.ImagesDownloaded = report.Succeeded
		res.Failed += report.Failed
	}

	if err := ctx.Err(); err != nil {
		r.emit(ProgressEvent{Message: fmt.Sprintf("Cancelled %s", book.Title()), Level: LevelWarning})
		return res.Fail(err), nil
	}

	for _, p := range r.packagers {
		path, err := p.Package(ctx, book, layout)
		if err != nil {
			log.Warn("packager failed", "packager", p.Name(), "error", err)
			r.emit(ProgressEvent{Message: fmt.Sprintf("Error running %s for %s: %v", p.Name(), book.Title(), err), Level: LevelWarning})
			continue
		}
		r.emit(ProgressEvent{Message: fmt.Sprintf("Wrote %s", path), Level: LevelVerbose})
		if _, ok := p.(ArchivePackager); ok {
			res.ArchivePath = path
		}
	}

	if res.Downloaded() > 0 {
		res.SavePath = layout.Root
		res.Success = true
	} else {
		res.Error = "nothing was downloaded"
	}

	switch {
	case !res.Success:
		r.emit(ProgressEvent{Message: fmt.Sprintf("Nothing downloaded for %s", book.Title()), Level: LevelError})
	case res.Failed == 0:
		r.emit(ProgressEvent{Message: fmt.Sprintf("Successfully downloaded book: %s", book.Title()), Level: LevelSuccess})
	default:
		r.emit(ProgressEvent{Message: fmt.Sprintf("Finished %s, %d file(s) failed", book.Title(), res.Failed), Level: LevelWarning})
	}
	log.Info("book finished",
		"book", book.ID,
		"images", res.ImagesDownloaded,
		"ocr", res.OCRFilesDownloaded,
		"failed", res.Failed)

	return res, nil
}

// Batch runs every url with the named handler, at most
// max_concurrent_books at a time. Results are in input order.
func (r *Runner) Batch(ctx context.Context, handlerName string, urls []string) []*model.Result {
	results := make([]*model.Result, len(urls))
	sem := semaphore.NewWeighted(int64(max(r.settings.MaxConcurrentBooks, 1)))

	var wg sync.WaitGroup
	for i, url := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = (&model.Result{Handler: handlerName, URL: url}).Fail(err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			res, err := r.Run(ctx, handlerName, url)
			if err != nil {
				res = (&model.Result{Handler: handlerName, URL: url}).Fail(err)
			}
			results[i] = res
		}()
	}
	wg.Wait()
	return results
}

func (r *Runner) download(ctx context.Context, log *slog.Logger, label string, tasks []download.Task) (download.Report, error) {
	if len(tasks) == 0 {
		log.Warn("no tasks to download", "label", label)
		return download.Report{}, nil
	}

	m, err := download.NewManager(r.fetcher, download.Options{
		Concurrency:   r.settings.Concurrency,
		SleepInterval: r.settings.SleepDuration(),
		Label:         label,
		Observer:      r.observer,
		Logger:        log,
	})
	if err != nil {
		return download.Report{}, err
	}

	r.emit(ProgressEvent{Message: fmt.Sprintf("Downloading %d %s file(s)", len(tasks), label), Level: LevelInfo})
	m.AddTasks(tasks...)
	report := m.Run(ctx, func(task download.Task, success bool) {
		if success {
			r.emit(ProgressEvent{Message: fmt.Sprintf("Saved %s", filepath.Base(task.Destination)), Level: LevelVerbose})
			return
		}
		r.emit(ProgressEvent{Message: fmt.Sprintf("Error downloading %s", task.SourceURL), Level: LevelError})
	})
	return report, nil
}

// selectPages applies the volume and page ranges. Pages of a book without
// volumes belong to volume 1.
func (r *Runner) selectPages(book *model.Book) []model.Page {
	volumes, pr := r.settings.Volumes(), r.settings.Pages()
	if volumes == nil {
		if pr == nil {
			return book.Pages
		}
		return book.PagesInRange(pr.Start, pr.End)
	}

	var pages []model.Page
	for _, p := range book.Pages {
		if volumes.Contains(max(p.Volume, 1)) && pr.Contains(p.Order) {
			pages = append(pages, p)
		}
	}
	return pages
}

func (r *Runner) ocrTasks(book *model.Book, pages []model.Page, layout Layout) []download.Task {
	var tasks []download.Task
	for _, p := range pages {
		if p.AltoURL != "" {
			tasks = r.appendTask(tasks, book, p, p.AltoURL, "", layout.AltoPath(p.Order))
		}
		if p.PlainTextURL != "" {
			tasks = r.appendTask(tasks, book, p, p.PlainTextURL, "", layout.TextPath(p.Order))
		}
	}
	return tasks
}

func (r *Runner) imageTasks(book *model.Book, pages []model.Page, layout Layout) []download.Task {
	var tasks []download.Task
	for _, p := range pages {
		if !p.HasImage() {
			continue
		}
		ext := p.ImageExt
		if ext == "" {
			ext = r.settings.FileExt
		}
		tasks = r.appendTask(tasks, book, p, p.ImageURL, p.ImageFallbackURL, layout.ImagePath(p.Order, ext))
	}
	return tasks
}

func (r *Runner) appendTask(tasks []download.Task, book *model.Book, page model.Page, url, fallback, dest string) []download.Task {
	task, err := download.NewTask(url, fallback, dest)
	if err != nil {
		r.logger.Warn("skipping invalid task", "error", err)
		return tasks
	}
	task.Provenance = download.Provenance{BookID: book.ID, Title: book.Title()}
	if page.Volume > 0 {
		task.Provenance.VolumeID = strconv.Itoa(page.Volume)
	}
	return append(tasks, task)
}

// saveDocuments writes the source documents to metadata/. JSON is
// re-indented for readability; a failure is logged and otherwise ignored.
func (r *Runner) saveDocuments(log *slog.Logger, layout Layout, docs map[string][]byte) {
	for name, data := range docs {
		if strings.EqualFold(filepath.Ext(name), ".json") {
			var buf bytes.Buffer
			if json.Indent(&buf, data, "", "  ") == nil {
				data = buf.Bytes()
			}
		}
		dest := filepath.Join(layout.Metadata, ioutils.SanitizeFileName(name))
		if err := ioutils.WriteFileAtomic(dest, data, 0644); err != nil {
			log.Error("failed to save document", "path", dest, "error", err)
			continue
		}
		log.Info("saved document", "path", dest)
	}
}

func (r *Runner) emit(e ProgressEvent) {
	if r.onProgress == nil {
		return
	}
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.onProgress(e)
}

// ParseURLs extracts http(s) URLs from text, one per line. Blank lines and
// lines starting with # are ignored.
func ParseURLs(input string) []string {
	var urls []string
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			urls = append(urls, line)
		}
	}
	return urls
}
