package document

import (
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// Validate checks the envelope and every element of d.
func Validate(d *Document) error {
	if d.Format != Format {
		if d.Format == "" {
			return cerrors.New(cerrors.ErrCodeFormat, "missing format marker")
		}
		return cerrors.New(cerrors.ErrCodeFormat, "unknown format %q", d.Format)
	}
	if d.Version == 0 {
		return cerrors.New(cerrors.ErrCodeFormat, "missing version marker")
	}
	if d.Version < MinVersion || d.Version > MaxVersion {
		return cerrors.New(cerrors.ErrCodeVersionMismatch,
			"document version %d not supported (supported %d..%d)", d.Version, MinVersion, MaxVersion)
	}

	seen := make(map[string]bool)
	var check func(list []Element, path string) error
	check = func(list []Element, path string) error {
		for i := range list {
			e := &list[i]
			if e.IsRef() {
				if e.ID != "" || e.Type != "" || len(e.Children) > 0 || len(e.State) > 0 ||
					e.Name != "" || e.Owner != "" || e.Creator != "" || e.Created != nil || e.ExternalKey != "" {
					return cerrors.New(cerrors.ErrCodeFormat, "%s[%d]: reference %q carries node fields", path, i, e.Ref)
				}
				continue
			}
			if e.ID == "" {
				return cerrors.New(cerrors.ErrCodeFormat, "%s[%d]: node without id", path, i)
			}
			if err := cerrors.ValidateNodeID(e.ID); err != nil {
				return cerrors.Wrap(cerrors.ErrCodeFormat, err, "%s[%d]", path, i)
			}
			if e.Type == "" {
				return cerrors.New(cerrors.ErrCodeFormat, "%s[%d]: node %q without type", path, i, e.ID)
			}
			if seen[e.ID] {
				return cerrors.New(cerrors.ErrCodeFormat, "%s[%d]: node %q serialized twice", path, i, e.ID)
			}
			seen[e.ID] = true
			if err := check(e.Children, path+"["+e.ID+"].children"); err != nil {
				return err
			}
		}
		return nil
	}
	return check(d.Export.Nodes, "nodes")
}
