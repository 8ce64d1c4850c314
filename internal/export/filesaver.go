package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/assemble"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// FileSaver writes each result as <base>.json under a directory, plus <base>.txt
// holding the raw text of unstructured results.
type FileSaver struct {
	basePath string
}

func NewFileSaver(basePath string) (*FileSaver, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &FileSaver{basePath: basePath}, nil
}

// Save writes the artifacts and returns the location of the JSON file.
func (s *FileSaver) Save(_ context.Context, res assemble.Result) (repository.Location, error) {
	if err := assemble.Validate(res); err != nil {
		return repository.Location{}, err
	}
	base := ArtifactBase(res)

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return repository.Location{}, fmt.Errorf("marshaling result: %w", err)
	}
	jsonPath := filepath.Join(s.basePath, base+".json")
	if err := writeAtomic(jsonPath, data); err != nil {
		return repository.Location{}, err
	}

	if res.RawText != "" {
		if err := writeAtomic(filepath.Join(s.basePath, base+".txt"), []byte(res.RawText+"\n")); err != nil {
			return repository.Location{}, err
		}
	}
	return repository.Location{Backend: "file", Path: jsonPath}, nil
}

// WriteWorkbook stores an XLSX export under the output directory.
func (s *FileSaver) WriteWorkbook(name string, data []byte) (string, error) {
	path := filepath.Join(s.basePath, name)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ArtifactBase is the file stem for a result: the source name without its
// extension, suffixed with the first 8 characters of the document ID.
func ArtifactBase(res assemble.Result) string {
	stem := strings.TrimSuffix(res.Filename, filepath.Ext(res.Filename))
	stem = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r < ' ' {
			return '_'
		}
		return r
	}, stem)
	if stem == "" {
		stem = "document"
	}
	id := res.DocumentID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return stem
	}
	return stem + "." + id
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
