package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxIDLength bounds node and type identifiers so they fit every store backend key.
const maxIDLength = 256

// ValidateNodeID validates a node identifier read from a document or the command line.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters or null bytes
//   - No leading or trailing whitespace
//   - Maximum length of 256 characters
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "node id cannot be empty")
	}

	if len(id) > maxIDLength {
		return New(ErrCodeInvalidInput, "node id too long (max %d characters)", maxIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "node id contains invalid control characters")
		}
	}

	if strings.TrimSpace(id) != id {
		return New(ErrCodeInvalidInput, "node id cannot start or end with whitespace")
	}

	return nil
}

// typeIDRegex matches type identifiers such as "folder" or "provenance.file".
var typeIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*(\.[a-z0-9_-]+)*$`)

// ValidateTypeID validates a type identifier against the registry naming scheme:
// lowercase dot-separated segments starting with a letter.
func ValidateTypeID(typeID string) error {
	if typeID == "" {
		return New(ErrCodeInvalidInput, "type id cannot be empty")
	}
	if len(typeID) > maxIDLength {
		return New(ErrCodeInvalidInput, "type id too long (max %d characters)", maxIDLength)
	}
	if !typeIDRegex.MatchString(typeID) {
		return New(ErrCodeInvalidInput, "invalid type id: %q", typeID)
	}
	return nil
}

// ValidateSourcePath validates a document path given to import or export.
// It only rejects paths that can never name a file; existence is checked later
// so a missing file is reported as MISSING_SOURCE rather than INVALID_INPUT.
func ValidateSourcePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidInput, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "path too long (max %d characters)", maxPathLength)
	}

	if strings.ContainsRune(path, '\x00') {
		return New(ErrCodeInvalidInput, "path contains null bytes")
	}

	return nil
}
