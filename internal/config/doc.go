// Package config provides configuration management for bookget.
//
// This package handles:
//   - Loading and saving settings from YAML or JSON files
//   - Default configuration values
//   - Validation, reported as errors wrapping ErrInvalidConfig
//   - Page and volume range parsing
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// Downloads to ./downloads/<domain>/<slug>
//	// 16 concurrent files per batch, 3 attempts with 1s..10s backoff
//
// # Loading from File
//
//	settings, err := config.Load("bookget.yaml")
//	if errors.Is(err, config.ErrInvalidConfig) {
//	    // bad value; a missing file is not an error
//	}
//
// # Ranges
//
// Page and volume ranges are inclusive and 1-based. "4:434", "4-434" and
// "7" are accepted; an empty range selects everything.
package config
