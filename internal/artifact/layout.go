package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Layout places uploaded inputs and produced results on disk.
// Uploads live at <UploadDir>/<job_id>_<basename>, results at <ResultDir>/<job_id>.<ext>.
type Layout struct {
	UploadDir string
	ResultDir string
}

// NewLayout returns a layout rooted at the given directories.
func NewLayout(uploadDir, resultDir string) *Layout {
	return &Layout{UploadDir: uploadDir, ResultDir: resultDir}
}

// Ensure creates the upload and result directories.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.UploadDir, l.ResultDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// UploadPath returns where the input for jobID is stored. Only the base name
// of filename is kept so a client cannot escape the upload directory.
func (l *Layout) UploadPath(jobID, filename string) string {
	return filepath.Join(l.UploadDir, jobID+"_"+filepath.Base(filename))
}

// ResultPath returns the path of a result artifact with the given extension.
func (l *Layout) ResultPath(jobID, ext string) string {
	return filepath.Join(l.ResultDir, jobID+"."+strings.TrimPrefix(ext, "."))
}

// SaveUpload streams r into the upload path of jobID and returns that path.
// A partially written file is removed on failure.
func (l *Layout) SaveUpload(jobID, filename string, r io.Reader) (string, error) {
	if err := l.Ensure(); err != nil {
		return "", err
	}

	path := l.UploadPath(jobID, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}

	return path, nil
}
