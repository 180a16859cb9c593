package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/featlabs/featrun/packages/core/runtime"
)

// JSONLWriter streams run events as one JSON object per line. It is a
// RunListener: register it on the suite and close it after the run.
type JSONLWriter struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: w}
}

// NewJSONLFile opens (truncating) a JSONL event stream at path.
func NewJSONLFile(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &JSONLWriter{w: f, closer: f}, nil
}

// OnEvent writes the event and never vetoes.
func (j *JSONLWriter) OnEvent(e runtime.RunEvent) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	data, err := json.Marshal(e.ToMap())
	if err != nil {
		return true
	}
	j.w.Write(data)
	j.w.Write([]byte("\n"))
	return true
}

func (j *JSONLWriter) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
