// Package dump implements the optional debug HTML dumping feature: every
// raw upstream request/response is written to disk for offline diagnosis,
// mirroring the original extractor's save_debug_html flag.
package dump

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemWriter writes each dumped message to its own file under
// directory, clearing the directory at construction time.
type FilesystemWriter struct {
	directory string
}

// NewFilesystemWriter creates (clearing first) dir and returns a writer
// rooted there.
func NewFilesystemWriter(dir string) (*FilesystemWriter, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, err
	}
	return &FilesystemWriter{directory: dir}, nil
}

// Write persists contents under id within the writer's directory.
func (w *FilesystemWriter) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(w.directory, id), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("dump: failed to write message file", "id", id, "err", err)
	}
}
