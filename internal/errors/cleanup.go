// Package errors provides cleanup helpers shared by ief commands.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes an input file's handle or mapping and logs a failure
// against path. Inputs are read-only, so a failed close never changes a
// scan result.
func DeferClose(logger zerolog.Logger, closer io.Closer, path string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to release input file")
	}
}
