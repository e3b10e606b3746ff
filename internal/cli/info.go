package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/handiism/bookget/internal/handler"
	"github.com/handiism/bookget/internal/model"
)

// bookInfo is what info prints.
type bookInfo struct {
	Handler  string         `json:"handler" yaml:"handler"`
	BookID   string         `json:"book_id" yaml:"book_id"`
	URL      string         `json:"url" yaml:"url"`
	Pages    int            `json:"pages" yaml:"pages"`
	Volumes  int            `json:"volumes" yaml:"volumes"`
	OCRPages int            `json:"ocr_pages" yaml:"ocr_pages"`
	SavePath string         `json:"save_path" yaml:"save_path"`
	Metadata model.Metadata `json:"metadata" yaml:"metadata"`
}

func newInfoCmd(opts *globalOptions) *cobra.Command {
	var handlerName string

	cmd := &cobra.Command{
		Use:   "info URL",
		Short: "Show a book's metadata without downloading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := handler.NewRunnerFromSettings(opts.settings, nil)
			if err != nil {
				return err
			}
			defer runner.Close()

			source, err := runner.Registry().Resolve(handlerName, args[0])
			if err != nil {
				return err
			}
			manifest, err := source.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			book := manifest.Book
			info := bookInfo{
				Handler:  source.Name(),
				BookID:   book.ID,
				URL:      args[0],
				Pages:    book.TotalPages(),
				Volumes:  book.Volumes(),
				OCRPages: book.OCRPages(),
				SavePath: handler.NewLayout(opts.settings.DownloadDir, args[0]).Root,
				Metadata: book.Metadata,
			}
			return render(cmd.OutOrStdout(), opts.outputFormat, info, func(w io.Writer) error {
				return printInfo(w, info)
			})
		},
	}
	cmd.Flags().StringVar(&handlerName, "handler", handler.AutoName, `handler used to read the URL, "auto" detects it`)

	return cmd
}

func printInfo(w io.Writer, info bookInfo) error {
	md := info.Metadata
	rows := []struct{ label, value string }{
		{"Title", md.Title},
		{"Creator", md.Creator},
		{"Date", md.Date},
		{"Publisher", md.Publisher},
		{"Language", md.Language},
		{"Subject", strings.Join(md.Subject, "; ")},
		{"Rights", md.Rights},
		{"Book ID", info.BookID},
		{"Pages", fmt.Sprintf("%d (%d with OCR)", info.Pages, info.OCRPages)},
		{"Volumes", volumes(info.Volumes)},
		{"Save path", info.SavePath},
	}
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%-10s %s\n", r.label+":", r.value); err != nil {
			return err
		}
	}
	return nil
}

func volumes(n int) string {
	if n <= 1 {
		return ""
	}
	return fmt.Sprint(n)
}
