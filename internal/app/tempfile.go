package app

import (
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// writeTempArchive spills downloaded archive bytes to disk since
// Unpack reads from a path; .conda archives skip this because
// ReadConda extracts them straight from the in-memory bytes.
func writeTempArchive(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to stage downloaded archive").
			WithCause(err)
	}
	return nil
}

func removeTempArchive(path string) {
	_ = os.Remove(path)
}
