package config

import (
	"slices"

	"github.com/coral-mesh/ief/internal/constants"
)

// Formats lists the accepted output formats.
var Formats = []string{"text", "table", "json", "csv", "markdown"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Workers:     constants.DefaultWorkers,
			MaxFileSize: ByteSize(constants.DefaultMaxFileSize),
			Access:      constants.DefaultAccess,
		},
		Walk: WalkConfig{
			IgnoreFiles:    slices.Clone(constants.DefaultIgnoreFiles),
			UseIgnoreFiles: true,
		},
		Log: LogConfig{
			Level: constants.DefaultLogLevel,
		},
		Output: OutputConfig{
			Format: constants.DefaultFormat,
		},
	}
}
