// Package schema defines the on-disk record versions sift understands.
//
// Every persisted record carries a schema_version integer. A missing
// field means the record predates versioning and is read as version 0.
// A version newer than what this build supports aborts the load; the
// record is never reinterpreted or rewritten.
package schema

import "fmt"

const (
	// SessionVersion is the current session record version.
	SessionVersion = 1

	// TemplateVersion is the current template record version.
	TemplateVersion = 1

	// OldestVersion is assumed for records with no schema_version field.
	OldestVersion = 0
)

// VersionError reports a stored record from a newer schema than this
// build understands.
type VersionError struct {
	Path      string
	Found     int
	Supported int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s: schema version %d is newer than supported version %d (upgrade sift to read this record)",
		e.Path, e.Found, e.Supported)
}

// Check returns a VersionError when found exceeds supported.
func Check(path string, found, supported int) error {
	if found > supported {
		return &VersionError{Path: path, Found: found, Supported: supported}
	}
	return nil
}
