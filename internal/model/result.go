package model

// Result is the record returned for one processed book.
type Result struct {
	Handler            string `json:"type" yaml:"type"`
	URL                string `json:"url" yaml:"url"`
	BookID             string `json:"book_id,omitempty" yaml:"book_id,omitempty"`
	Title              string `json:"title,omitempty" yaml:"title,omitempty"`
	TotalPages         int    `json:"total_pages" yaml:"total_pages"`
	ImagesDownloaded   int    `json:"images_downloaded" yaml:"images_downloaded"`
	OCRFilesDownloaded int    `json:"ocr_files_downloaded" yaml:"ocr_files_downloaded"`
	Failed             int    `json:"failed" yaml:"failed"`
	SavePath           string `json:"save_path,omitempty" yaml:"save_path,omitempty"`
	ArchivePath        string `json:"archive_path,omitempty" yaml:"archive_path,omitempty"`
	Success            bool   `json:"success" yaml:"success"`
	Error              string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Downloaded is the total number of files obtained.
func (r *Result) Downloaded() int {
	return r.ImagesDownloaded + r.OCRFilesDownloaded
}

// Fail marks the result failed with err and returns it.
func (r *Result) Fail(err error) *Result {
	r.Success = false
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
