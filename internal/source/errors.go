package source

import "fmt"

// ParseError reports a declarative file that could not be read as YAML in
// the expected shape.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DuplicateZoneError reports the same zone name declared by two source files.
type DuplicateZoneError struct {
	Zone      string
	Path      string
	FirstPath string
}

func (e *DuplicateZoneError) Error() string {
	return fmt.Sprintf("zone %q declared in both %s and %s", e.Zone, e.FirstPath, e.Path)
}

// ValidationError reports a declared record that is missing required fields
// or collides with another declaration in the desired-state set.
type ValidationError struct {
	Zone         string
	FriendlyName string
	Reason       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("zone %q, record group %q: %s", e.Zone, e.FriendlyName, e.Reason)
}
