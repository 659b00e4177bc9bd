package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/afero"
)

const (
	// IncomingDir holds uploaded source files.
	IncomingDir = "incoming"

	// ResultsDir holds processing results, one JSON file per document.
	ResultsDir = "results"
)

// ErrResultNotFound is returned when a document has no result file.
var ErrResultNotFound = errors.New("result file not found")

// Store is the on-disk storage layout for documents.
//
//	<root>/
//	├── incoming/<doc_id>/<filename>
//	└── results/<doc_id>.json
type Store struct {
	fs   afero.Fs
	root string
}

// New returns a store rooted at root on fs.
func New(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// NewOS returns a store rooted at root on the local filesystem.
func NewOS(root string) *Store {
	return New(afero.NewOsFs(), root)
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// EnsureLayout creates the storage directories if they do not exist.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{s.root, s.IncomingRoot(), s.ResultsRoot()} {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating storage directory %s: %w", dir, err)
		}
	}
	return nil
}

// IncomingRoot returns the incoming directory.
func (s *Store) IncomingRoot() string {
	return filepath.Join(s.root, IncomingDir)
}

// ResultsRoot returns the results directory.
func (s *Store) ResultsRoot() string {
	return filepath.Join(s.root, ResultsDir)
}

// ResultPath returns the result file path for id relative to the results
// directory.
func ResultPath(id string) string {
	return id + ".json"
}

// WriteResult writes the JSON result for document id and returns its path
// relative to the results directory.
func (s *Store) WriteResult(id string, result []byte) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	if !json.Valid(result) {
		return "", fmt.Errorf("result for %s is not valid JSON", id)
	}

	rel := ResultPath(id)
	if err := afero.WriteFile(s.fs, filepath.Join(s.ResultsRoot(), rel), result, 0o644); err != nil {
		return "", fmt.Errorf("error writing result file: %w", err)
	}
	return rel, nil
}

// ReadResult reads the result file at rel, relative to the results
// directory.
func (s *Store) ReadResult(rel string) ([]byte, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))[1:]
	if clean == "" || clean != filepath.ToSlash(rel) {
		return nil, fmt.Errorf("invalid result path: %q", rel)
	}

	b, err := afero.ReadFile(s.fs, filepath.Join(s.ResultsRoot(), filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("error reading result file: %w", err)
	}
	return b, nil
}

// WriteIncoming stores an uploaded source file for document id and returns
// its path relative to the incoming directory.
func (s *Store) WriteIncoming(id, filename string, data []byte) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}

	dir := filepath.Join(s.IncomingRoot(), id)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating incoming directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("error writing incoming file: %w", err)
	}
	return path.Join(id, name), nil
}

// RemoveResult deletes the result file for document id. A missing file is
// not an error.
func (s *Store) RemoveResult(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	err := s.fs.Remove(filepath.Join(s.ResultsRoot(), ResultPath(id)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
		return fmt.Errorf("error removing result file: %w", err)
	}
	return nil
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid document id: %q", id)
	}
	return nil
}
