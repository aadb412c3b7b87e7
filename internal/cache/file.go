package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FileBackend stores the mapping as one indented JSON object.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend persisting to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Describe implements Backend.
func (f *FileBackend) Describe() string { return f.path }

// Load implements Backend.
func (f *FileBackend) Load(_ context.Context) (map[string][]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string][]byte{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: read %s", f.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string][]byte{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "cache: decode %s", f.path)
	}

	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out, nil
}

// Save implements Backend. The file is replaced atomically: the mapping is
// written to a temp file in the same directory, synced, then renamed.
func (f *FileBackend) Save(_ context.Context, entries map[string][]byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "cache: mkdir %s", dir)
	}

	raw := make(map[string]json.RawMessage, len(entries))
	for k, v := range entries {
		raw[k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return eris.Wrap(err, "cache: encode")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+"-*.tmp")
	if err != nil {
		return eris.Wrap(err, "cache: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "cache: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "cache: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "cache: close temp file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return eris.Wrapf(err, "cache: replace %s", f.path)
	}
	return nil
}
