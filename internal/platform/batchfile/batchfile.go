// Package batchfile reads HL7 batch files from disk. A file that cannot be
// read is treated as an empty batch rather than an error.
package batchfile

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Read returns the content of path with surrounding whitespace removed. A
// missing or unreadable file is logged and yields "".
func Read(path string, logger zerolog.Logger) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Str("path", path).Msg("input file not found, treating as empty batch")
		} else {
			logger.Error().Err(err).Str("path", path).Msg("failed to read input file, treating as empty batch")
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}
