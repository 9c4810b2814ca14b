package registry

import (
	"os"

	"github.com/BurntSushi/toml"

	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// catalogFile is the on-disk shape of a type catalog:
//
//	[[type]]
//	id = "diagram.flow"
//	label = "Flow diagram"
//	creatable = true
//	views = ["layout"]
type catalogFile struct {
	Types []Type `toml:"type"`
}

// LoadCatalog reads a TOML catalog from path and registers its types.
func (r *Registry) LoadCatalog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIO, err, "read type catalog %s", path)
	}
	return r.ParseCatalog(data)
}

// ParseCatalog registers the types of a TOML catalog document.
// Nothing is registered if any entry is invalid.
func (r *Registry) ParseCatalog(data []byte) error {
	var cat catalogFile
	md, err := toml.Decode(string(data), &cat)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeFormat, err, "parse type catalog")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cerrors.New(cerrors.ErrCodeFormat, "unknown catalog key %q", undecoded[0].String())
	}
	for _, t := range cat.Types {
		if err := cerrors.ValidateTypeID(t.ID); err != nil {
			return err
		}
	}
	for _, t := range cat.Types {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
