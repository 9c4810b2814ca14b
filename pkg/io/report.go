package io

import (
	"errors"
	"fmt"

	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// FileStatus is the outcome of importing one file.
type FileStatus string

const (
	StatusOK              FileStatus = "ok"
	StatusMissingFile     FileStatus = "missing_file"
	StatusFormatError     FileStatus = "format_error"
	StatusVersionMismatch FileStatus = "version_mismatch"
	// StatusFailed means the file was readable but its container could not be created.
	StatusFailed FileStatus = "failed"
	// StatusCanceled marks files skipped because the context was cancelled.
	StatusCanceled FileStatus = "canceled"
)

// statusFor maps a document read error to a file status.
func statusFor(err error) FileStatus {
	switch cerrors.GetCode(err) {
	case cerrors.ErrCodeMissingSource:
		return StatusMissingFile
	case cerrors.ErrCodeVersionMismatch:
		return StatusVersionMismatch
	case cerrors.ErrCodeFormat:
		return StatusFormatError
	default:
		return StatusFailed
	}
}

// FileResult records what happened to one input file.
type FileResult struct {
	File   string     `json:"file"`
	Status FileStatus `json:"status"`
	// TopLevelCount is the number of nodes placed in the file container.
	TopLevelCount int    `json:"top_level_count"`
	Container     string `json:"container,omitempty"`
	Message       string `json:"message,omitempty"`
}

// OK reports whether the file was imported.
func (f FileResult) OK() bool { return f.Status == StatusOK }

// Issue is a per-node warning or a session-level error.
type Issue struct {
	File     string       `json:"file,omitempty"`
	SourceID string       `json:"source_id,omitempty"`
	Code     cerrors.Code `json:"code"`
	Message  string       `json:"message"`
}

func (i Issue) String() string {
	switch {
	case i.File != "" && i.SourceID != "":
		return fmt.Sprintf("%s: %s: %s", i.File, i.SourceID, i.Message)
	case i.File != "":
		return fmt.Sprintf("%s: %s", i.File, i.Message)
	case i.SourceID != "":
		return fmt.Sprintf("%s: %s", i.SourceID, i.Message)
	default:
		return i.Message
	}
}

// Report is the result of one Import call.
type Report struct {
	Files []FileResult `json:"files"`

	// NodesCreated counts content nodes built; containers are not included.
	NodesCreated int `json:"nodes_created"`
	// NodesReused counts full elements mapped onto a node already built
	// earlier in the same call.
	NodesReused int `json:"nodes_reused"`
	// CycleRefs counts references that reached a node still under
	// construction, i.e. the edges that close a cycle.
	CycleRefs int `json:"cycle_refs"`

	Warnings []Issue `json:"warnings,omitempty"`
	Errors   []Issue `json:"errors,omitempty"`

	// Session is the id of the "imported on" container, empty if none was created.
	Session string `json:"session,omitempty"`
	// Saved is the number of nodes committed at the end of the import.
	Saved int `json:"saved"`

	// Touched holds every node the import created or reused, containers and
	// target included, in first-touch order.
	Touched []*component.Node `json:"-"`
}

// Succeeded returns the number of files imported.
func (r *Report) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of files that contributed nothing.
func (r *Report) Failed() int {
	return len(r.Files) - r.Succeeded()
}

// Err joins the session-level errors, or returns nil.
func (r *Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, issue := range r.Errors {
		errs[i] = cerrors.New(issue.Code, "%s", issue.String())
	}
	return errors.Join(errs...)
}

func (r *Report) warn(file, sourceID string, code cerrors.Code, msg string) {
	r.Warnings = append(r.Warnings, Issue{File: file, SourceID: sourceID, Code: code, Message: msg})
}

func (r *Report) fail(file string, err error) {
	code := cerrors.GetCode(err)
	if code == "" {
		code = cerrors.ErrCodeInternal
	}
	r.Errors = append(r.Errors, Issue{File: file, Code: code, Message: cerrors.UserMessage(err)})
}
