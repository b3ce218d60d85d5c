package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/maastricht-university/meeting-transcription/export"
)

func newSessionID() string { return uuid.NewString() }

func mkSessionDir(outputsRoot, sid string) (string, error) {
	dir := filepath.Join(outputsRoot, "session_"+sid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("session dir: %w", err)
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// persist writes the text export, the markdown report and the JSON bundle
// under outputsRoot/session_<id>.
func persist(outputsRoot string, b Bundle) (dir string, files []string, err error) {
	dir, err = mkSessionDir(outputsRoot, b.SessionID)
	if err != nil {
		return "", nil, err
	}

	txtPath := filepath.Join(dir, export.TextFileName)
	mdPath := filepath.Join(dir, "transcript.md")
	jsonPath := filepath.Join(dir, "session.json")

	if err = writeFile(txtPath, func(w io.Writer) error {
		return export.Text(w, b.Transcript)
	}); err != nil {
		return "", nil, err
	}
	meta := export.Meta{
		SessionID:  b.SessionID,
		Source:     b.Source,
		Recognizer: b.Recognizer,
		Started:    b.StartedAt,
		Duration:   b.EndedAt.Sub(b.StartedAt),
		Speakers:   len(b.Summary.Speakers),
	}
	if err = writeFile(mdPath, func(w io.Writer) error {
		return export.Markdown(w, meta, b.Transcript)
	}); err != nil {
		return "", nil, err
	}
	if err = writeJSON(jsonPath, b); err != nil {
		return "", nil, err
	}
	return dir, []string{txtPath, mdPath, jsonPath}, nil
}
