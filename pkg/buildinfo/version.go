// Package buildinfo carries the version stamped into the compgraph binary.
//
// Set the variables with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/compgraph/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/compgraph/pkg/buildinfo.Commit=$(git rev-parse --short HEAD)" \
//	    ./cmd/compgraph
package buildinfo

import "fmt"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the git revision.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// Exporter returns the name written into exported documents.
func Exporter() string {
	return "compgraph " + Version
}

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
