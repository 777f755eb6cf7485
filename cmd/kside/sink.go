package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// fileSink writes downloaded artifacts into a directory.
type fileSink struct {
	dir string
	out io.Writer // where "wrote ..." notices go; nil for silence
}

func (s *fileSink) DownloadText(content, filename, mimeType string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.dir, filepath.Base(filename))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if s.out != nil {
		fmt.Fprintf(s.out, "wrote %s (%s, %d bytes)\n", path, mimeType, len(content))
	}
	return nil
}
