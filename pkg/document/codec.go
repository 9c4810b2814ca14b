package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// =============================================================================
// Encodings
// =============================================================================

// Encoding selects the document syntax.
type Encoding string

const (
	JSON Encoding = "json"
	YAML Encoding = "yaml"
)

// EncodingForPath picks YAML for .yaml/.yml paths and JSON otherwise.
func EncodingForPath(path string) Encoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// ParseEncoding parses a user-supplied encoding name.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return "", cerrors.New(cerrors.ErrCodeInvalidInput, "unknown encoding %q (want json or yaml)", name)
	}
}

// =============================================================================
// Serialization API
// =============================================================================

// Marshal encodes d.
func Marshal(d *Document, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, d, enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes d to w. Write failures are IO_ERROR.
func Encode(w io.Writer, d *Document, enc Encoding) error {
	switch enc {
	case YAML:
		e := yaml.NewEncoder(w)
		e.SetIndent(2)
		if err := e.Encode(d); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIO, err, "encode yaml")
		}
		if err := e.Close(); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIO, err, "encode yaml")
		}
		return nil
	default:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		if err := e.Encode(d); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIO, err, "encode json")
		}
		return nil
	}
}

// Decode reads and validates a document from r.
func Decode(r io.Reader, enc Encoding) (*Document, error) {
	var d Document
	switch enc {
	case YAML:
		if err := yaml.NewDecoder(r).Decode(&d); err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeFormat, err, "decode yaml")
		}
	default:
		dec := json.NewDecoder(r)
		if err := dec.Decode(&d); err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeFormat, err, "decode json")
		}
		if dec.More() {
			return nil, cerrors.New(cerrors.ErrCodeFormat, "trailing data after document")
		}
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Unmarshal decodes and validates data.
func Unmarshal(data []byte, enc Encoding) (*Document, error) {
	return Decode(bytes.NewReader(data), enc)
}

// ReadFile reads a document, choosing the encoding from the path.
// A path that does not exist or cannot be opened is MISSING_SOURCE.
func ReadFile(path string) (*Document, error) {
	if err := cerrors.ValidateSourcePath(path); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeMissingSource, err, "invalid path")
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cerrors.New(cerrors.ErrCodeMissingSource, "%s does not exist", path)
		}
		return nil, cerrors.Wrap(cerrors.ErrCodeMissingSource, err, "open %s", path)
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil && info.IsDir() {
		return nil, cerrors.New(cerrors.ErrCodeMissingSource, "%s is a directory", path)
	}
	return Decode(f, EncodingForPath(path))
}

// WriteFile writes d to path, choosing the encoding from the path.
// The file is created with 0644 permissions and written in place.
func WriteFile(path string, d *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIO, err, "create %s", path)
	}
	if err := Encode(f, d, EncodingForPath(path)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIO, err, "close %s", path)
	}
	return nil
}
