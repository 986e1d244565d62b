package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/research"
)

// FileStore writes final reports and session state dumps to disk.
type FileStore struct {
	reportDir string
	stateDir  string
}

func NewFileStore(cfg config.FileConfig) (*FileStore, error) {
	for _, dir := range []string{cfg.ReportDir, cfg.StateDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &FileStore{reportDir: cfg.ReportDir, stateDir: cfg.StateDir}, nil
}

// WriteReport saves the final report as Markdown and returns its path.
func (f *FileStore) WriteReport(sess *research.Session) (string, error) {
	if f.reportDir == "" {
		return "", fmt.Errorf("report directory not configured")
	}
	name := fmt.Sprintf("report_%s_%s.md", slug(sess.Query), time.Now().Format("20060102_150405"))
	path := filepath.Join(f.reportDir, name)
	if err := os.WriteFile(path, []byte(sess.FinalReport), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// WriteState dumps the full session document as JSON and returns its path.
func (f *FileStore) WriteState(sess *research.Session) (string, error) {
	if f.stateDir == "" {
		return "", fmt.Errorf("state directory not configured")
	}
	data, err := sess.Marshal()
	if err != nil {
		return "", err
	}
	path := filepath.Join(f.stateDir, fmt.Sprintf("state_%s.json", sess.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write state: %w", err)
	}
	return path, nil
}

// ReadState loads a session dump previously written by WriteState.
func (f *FileStore) ReadState(path string) (*research.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return research.UnmarshalSession(data)
}

// slug reduces a query to a filesystem-safe fragment, capped at 30 runes.
func slug(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	out := b.String()
	runes := []rune(out)
	if len(runes) > 30 {
		out = string(runes[:30])
	}
	if out == "" {
		out = "query"
	}
	return out
}
