package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

func sampleDocument() *Document {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d := New(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), "compgraph test")
	d.Export.Nodes = []Element{
		{
			ID: "a", Type: "folder", Name: "Root", Owner: "alice", Created: &created,
			Children: []Element{
				{ID: "b", Type: "note", State: map[string]map[string]string{"text": {"body": "hi"}},
					Children: []Element{NewRef("a")}},
				NewRef("b"),
			},
		},
	}
	return d
}

func TestRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{JSON, YAML} {
		t.Run(string(enc), func(t *testing.T) {
			data, err := Marshal(sampleDocument(), enc)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			d, err := Unmarshal(data, enc)
			if err != nil {
				t.Fatalf("Unmarshal: %v\n%s", err, data)
			}
			a := d.Export.Nodes[0]
			if a.ID != "a" || a.Name != "Root" || a.Created == nil || a.Created.Year() != 2024 {
				t.Errorf("root = %+v", a)
			}
			if len(a.Children) != 2 || !a.Children[1].IsRef() || a.Children[1].Ref != "b" {
				t.Errorf("children = %+v", a.Children)
			}
			if a.Children[0].State["text"]["body"] != "hi" {
				t.Errorf("state lost: %+v", a.Children[0].State)
			}
			if !d.Export.Timestamp.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
				t.Errorf("timestamp = %v", d.Export.Timestamp)
			}
		})
	}
}

func TestJSONShape(t *testing.T) {
	data, err := Marshal(sampleDocument(), JSON)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"format": "compgraph"`, `"version": 1`, `"ref": "a"`} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %s:\n%s", want, s)
		}
	}
	if strings.Contains(s, `"external_key"`) {
		t.Error("empty optional fields should be omitted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code cerrors.Code
	}{
		{"not json", `{`, cerrors.ErrCodeFormat},
		{"empty", ``, cerrors.ErrCodeFormat},
		{"wrong format", `{"format":"other","version":1,"export":{"nodes":[]}}`, cerrors.ErrCodeFormat},
		{"missing format", `{"version":1,"export":{"nodes":[]}}`, cerrors.ErrCodeFormat},
		{"missing version", `{"format":"compgraph","export":{"nodes":[]}}`, cerrors.ErrCodeFormat},
		{"future version", `{"format":"compgraph","version":2,"export":{"nodes":[]}}`, cerrors.ErrCodeVersionMismatch},
		{"node without id", `{"format":"compgraph","version":1,"export":{"nodes":[{"type":"note"}]}}`, cerrors.ErrCodeFormat},
		{"node without type", `{"format":"compgraph","version":1,"export":{"nodes":[{"id":"a"}]}}`, cerrors.ErrCodeFormat},
		{"ref with fields", `{"format":"compgraph","version":1,"export":{"nodes":[{"ref":"a","type":"note"}]}}`, cerrors.ErrCodeFormat},
		{"duplicate id", `{"format":"compgraph","version":1,"export":{"nodes":[{"id":"a","type":"x"},{"id":"a","type":"x"}]}}`, cerrors.ErrCodeFormat},
		{"trailing data", `{"format":"compgraph","version":1,"export":{"nodes":[]}} {}`, cerrors.ErrCodeFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.doc), JSON)
			if !cerrors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestDanglingRefIsValid(t *testing.T) {
	doc := `{"format":"compgraph","version":1,"export":{"nodes":[{"id":"a","type":"x","children":[{"ref":"zzz"}]}]}}`
	if _, err := Unmarshal([]byte(doc), JSON); err != nil {
		t.Errorf("dangling refs are reported by importers, not rejected: %v", err)
	}
}

func TestIndexAndCount(t *testing.T) {
	d := sampleDocument()
	idx := d.Index()
	if len(idx) != 2 || idx["b"].Type != "note" {
		t.Errorf("Index = %v", idx)
	}
	full, refs := d.Count()
	if full != 2 || refs != 2 {
		t.Errorf("Count = %d full, %d refs", full, refs)
	}
}

func TestEncodingForPath(t *testing.T) {
	tests := map[string]Encoding{
		"out.json": JSON,
		"out.YAML": YAML,
		"out.yml":  YAML,
		"out":      JSON,
	}
	for path, want := range tests {
		if got := EncodingForPath(path); got != want {
			t.Errorf("EncodingForPath(%q) = %s, want %s", path, got, want)
		}
	}
	if _, err := ParseEncoding("xml"); !cerrors.Is(err, cerrors.ErrCodeInvalidInput) {
		t.Errorf("ParseEncoding(xml) err = %v", err)
	}
	if enc, _ := ParseEncoding("YML"); enc != YAML {
		t.Errorf("ParseEncoding(YML) = %s", enc)
	}
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"doc.json", "doc.yaml"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, sampleDocument()); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
		d, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		if len(d.Export.Nodes) != 1 {
			t.Errorf("%s: nodes = %d", name, len(d.Export.Nodes))
		}
	}

	data, _ := os.ReadFile(filepath.Join(dir, "doc.yaml"))
	if !bytes.HasPrefix(data, []byte("format: compgraph")) {
		t.Errorf("yaml output should start with the format marker:\n%s", data)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.json")); !cerrors.Is(err, cerrors.ErrCodeMissingSource) {
		t.Errorf("missing file err = %v", err)
	}
	if _, err := ReadFile(dir); !cerrors.Is(err, cerrors.ErrCodeMissingSource) {
		t.Errorf("directory err = %v", err)
	}
	if err := WriteFile(filepath.Join(dir, "no", "such", "dir.json"), sampleDocument()); !cerrors.Is(err, cerrors.ErrCodeIO) {
		t.Errorf("unwritable path err = %v", err)
	}
}
