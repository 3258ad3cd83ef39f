package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/newtron-network/newtrace/pkg/util"
)

// FileStore keeps one document in a JSON file.
type FileStore struct {
	Path string
}

// Save writes the document to a temporary file beside Path and renames it
// into place, so readers never see a partial file.
func (s *FileStore) Save(_ context.Context, doc *Document) error {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing snapshot file: %w", err)
	}
	return nil
}

// Load reads the document. A missing file is util.ErrNotFound.
func (s *FileStore) Load(_ context.Context) (*Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("snapshot %s: %w", s.Path, util.ErrNotFound)
		}
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
