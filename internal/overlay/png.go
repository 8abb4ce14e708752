package overlay

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
)

// WritePNG encodes the colorized band as PNG.
func (m *Map) WritePNG(w io.Writer) error {
	if err := png.Encode(w, m.Image); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// SavePNG writes the PNG to path through a temporary file in the same
// directory, so readers never see a partial image.
func (m *Map) SavePNG(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if err := m.WritePNG(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	return nil
}

// DataURI returns the PNG as a base64 data URI.
func (m *Map) DataURI() (string, error) {
	var buf bytes.Buffer
	if err := m.WritePNG(&buf); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
