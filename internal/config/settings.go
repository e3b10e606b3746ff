package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultUserAgent mimics a desktop browser; several library servers reject
// unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadDir        string  `json:"download_dir" yaml:"download_dir"`
	Concurrency        int     `json:"concurrency" yaml:"concurrency"`
	MaxConcurrentBooks int     `json:"max_concurrent_books" yaml:"max_concurrent_books"`
	SleepInterval      float64 `json:"sleep_interval" yaml:"sleep_interval"`
	FileExt            string  `json:"file_ext" yaml:"file_ext"`
	PageRange          string  `json:"page_range,omitempty" yaml:"page_range,omitempty"`
	VolumeRange        string  `json:"volume_range,omitempty" yaml:"volume_range,omitempty"`
	SkipOCR            bool    `json:"skip_ocr" yaml:"skip_ocr"`
	SkipImages         bool    `json:"skip_images" yaml:"skip_images"`
	ShowProgress       bool    `json:"show_progress" yaml:"show_progress"`

	// Packaging
	Thumbnail        bool `json:"thumbnail" yaml:"thumbnail"`
	ThumbnailMaxSize int  `json:"thumbnail_max_size" yaml:"thumbnail_max_size"`
	Archive          bool `json:"archive" yaml:"archive"`

	// Retry settings
	MaxAttempts     int     `json:"max_attempts" yaml:"max_attempts"`
	RetryWaitMin    float64 `json:"retry_wait_min" yaml:"retry_wait_min"`
	RetryWaitMax    float64 `json:"retry_wait_max" yaml:"retry_wait_max"`
	RetryMultiplier float64 `json:"retry_multiplier" yaml:"retry_multiplier"`

	// HTTP settings
	Timeout    float64 `json:"timeout" yaml:"timeout"`
	UserAgent  string  `json:"user_agent" yaml:"user_agent"`
	Proxy      string  `json:"proxy,omitempty" yaml:"proxy,omitempty"` // empty: HTTPS_PROXY / HTTP_PROXY
	VerifySSL  bool    `json:"verify_ssl" yaml:"verify_ssl"`
	HTTP2      bool    `json:"http2" yaml:"http2"`
	CookieFile string  `json:"cookie_file,omitempty" yaml:"cookie_file,omitempty"`
	HeaderFile string  `json:"header_file,omitempty" yaml:"header_file,omitempty"`

	// IIIF image request parameters
	IIIFQuality  string `json:"iiif_quality" yaml:"iiif_quality"`
	IIIFFormat   string `json:"iiif_format" yaml:"iiif_format"`
	IIIFRegion   string `json:"iiif_region" yaml:"iiif_region"`
	IIIFRotation int    `json:"iiif_rotation" yaml:"iiif_rotation"`
	IIIFMaxSize  int    `json:"iiif_max_size,omitempty" yaml:"iiif_max_size,omitempty"` // longest edge in pixels, 0: full size

	// Logging
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		DownloadDir:        "./downloads",
		Concurrency:        16,
		MaxConcurrentBooks: 2,
		SleepInterval:      0,
		FileExt:            ".jpg",
		ShowProgress:       true,

		Thumbnail:        true,
		ThumbnailMaxSize: 400,

		MaxAttempts:     3,
		RetryWaitMin:    1.0,
		RetryWaitMax:    10.0,
		RetryMultiplier: 2.0,

		Timeout:   300,
		UserAgent: DefaultUserAgent,
		VerifySSL: false,
		HTTP2:     true,

		IIIFQuality:  "default",
		IIIFFormat:   "jpg",
		IIIFRegion:   "full",
		IIIFRotation: 0,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads settings from a YAML file, or JSON when the extension is .json.
// A missing file yields the defaults. Loaded settings are validated.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if isJSON(path) {
		err = json.Unmarshal(data, settings)
	} else {
		err = yaml.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes settings to path in the format implied by its extension.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid field, each wrapping ErrInvalidConfig.
func (s *Settings) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if strings.TrimSpace(s.DownloadDir) == "" {
		bad("download_dir must not be empty")
	}
	if s.Concurrency < 1 {
		bad("concurrency must be >= 1, got %d", s.Concurrency)
	}
	if s.MaxConcurrentBooks < 1 {
		bad("max_concurrent_books must be >= 1, got %d", s.MaxConcurrentBooks)
	}
	if s.SleepInterval < 0 {
		bad("sleep_interval must be >= 0, got %g", s.SleepInterval)
	}
	if s.MaxAttempts < 1 {
		bad("max_attempts must be >= 1, got %d", s.MaxAttempts)
	}
	if s.RetryWaitMin < 0 {
		bad("retry_wait_min must be >= 0, got %g", s.RetryWaitMin)
	}
	if s.RetryWaitMax < s.RetryWaitMin {
		bad("retry_wait_max (%g) must be >= retry_wait_min (%g)", s.RetryWaitMax, s.RetryWaitMin)
	}
	if s.RetryMultiplier < 1 {
		bad("retry_multiplier must be >= 1, got %g", s.RetryMultiplier)
	}
	if s.Timeout <= 0 {
		bad("timeout must be > 0, got %g", s.Timeout)
	}
	if s.ThumbnailMaxSize < 1 {
		bad("thumbnail_max_size must be >= 1, got %d", s.ThumbnailMaxSize)
	}
	if s.IIIFRotation < 0 || s.IIIFRotation >= 360 {
		bad("iiif_rotation must be in [0, 360), got %d", s.IIIFRotation)
	}
	if s.IIIFMaxSize < 0 {
		bad("iiif_max_size must be >= 0, got %d", s.IIIFMaxSize)
	}
	if _, err := ParseRange(s.PageRange); err != nil {
		bad("page_range: %v", err)
	}
	if _, err := ParseRange(s.VolumeRange); err != nil {
		bad("volume_range: %v", err)
	}

	return errors.Join(errs...)
}

// Pages returns the parsed page range, or nil when unset.
func (s *Settings) Pages() *Range {
	r, _ := ParseRange(s.PageRange)
	return r
}

// Volumes returns the parsed volume range, or nil when unset. Volumes are
// the member manifests of a IIIF collection, counted from 1.
func (s *Settings) Volumes() *Range {
	r, _ := ParseRange(s.VolumeRange)
	return r
}

// TimeoutDuration is the per-request timeout.
func (s *Settings) TimeoutDuration() time.Duration { return seconds(s.Timeout) }

// SleepDuration is the pause after each successful download.
func (s *Settings) SleepDuration() time.Duration { return seconds(s.SleepInterval) }

// RetryWaitMinDuration is the first backoff wait.
func (s *Settings) RetryWaitMinDuration() time.Duration { return seconds(s.RetryWaitMin) }

// RetryWaitMaxDuration caps every backoff wait.
func (s *Settings) RetryWaitMaxDuration() time.Duration { return seconds(s.RetryWaitMax) }

// ImageExt is the file extension for IIIF image requests, derived from the
// requested format.
func (s *Settings) ImageExt() string {
	switch f := strings.ToLower(strings.TrimPrefix(s.IIIFFormat, ".")); f {
	case "", "jpg", "jpeg":
		return ".jpg"
	default:
		return "." + f
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
