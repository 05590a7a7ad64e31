// Package constants defines shared configuration constants and defaults.
package constants

// Scan defaults.
const (
	// DefaultWorkers checks one file at a time.
	DefaultWorkers = 1

	// DefaultMaxFileSize is the largest candidate file that is read (512MB).
	DefaultMaxFileSize int64 = 512 << 20

	// DefaultAccess memory-maps candidate files.
	DefaultAccess = "mmap"
)

// Walk defaults.
const (
	// GitDir is never descended into.
	GitDir = ".git"
)

// DefaultIgnoreFiles are the per-directory ignore files honored while
// walking, in precedence order.
var DefaultIgnoreFiles = []string{".gitignore", ".ignore"}

// Output defaults.
const (
	DefaultFormat = "text"

	DefaultLogLevel = "info"

	// ReportTitle is the heading of the markdown report.
	ReportTitle = "IEF Results"
)
