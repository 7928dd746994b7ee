// Package fieldpath parses and evaluates field paths against documents and
// schemas.
//
// Syntax: dotted segments address object properties; a literal "[]" directly
// after a segment name marks the segment as an array whose elements are
// addressed by the rest of the path, e.g. "items[].productId". Paths that
// start with SystemPrefix are pseudo-paths resolved by the caller.
package fieldpath

import (
	"errors"
	"fmt"
	"strings"
)

// SystemPrefix marks reserved pseudo-paths such as "_system.timestamp".
const SystemPrefix = "_system."

const arrayMarker = "[]"

// ErrEmptyPath is returned when parsing an empty path or a path with an
// empty segment.
var ErrEmptyPath = errors.New("empty path segment")

// ErrArrayWrite is returned by Set when the path contains an array marker.
// Writing into array elements is not supported.
var ErrArrayWrite = errors.New("cannot write through array marker")

// Segment is one step of a path.
type Segment struct {
	Name string
	// Each is set when the segment carries the "[]" marker.
	Each bool
}

func (s Segment) String() string {
	if s.Each {
		return s.Name + arrayMarker
	}
	return s.Name
}

// Path is a parsed field path. The zero value addresses the document root.
type Path struct {
	raw      string
	segments []Segment
}

// Parse parses a field path.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, ErrEmptyPath
	}
	parts := strings.Split(raw, ".")
	segs := make([]Segment, 0, len(parts))
	for i, part := range parts {
		seg := Segment{Name: part}
		if strings.HasSuffix(part, arrayMarker) {
			seg = Segment{Name: strings.TrimSuffix(part, arrayMarker), Each: true}
		}
		if seg.Name == "" {
			return Path{}, fmt.Errorf("segment %d of %q: %w", i, raw, ErrEmptyPath)
		}
		if strings.ContainsAny(seg.Name, "[]") {
			return Path{}, fmt.Errorf("segment %q of %q: misplaced array marker", part, raw)
		}
		segs = append(segs, seg)
	}
	return Path{raw: raw, segments: segs}, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// FromSegments builds a path from segments.
func FromSegments(segs ...Segment) Path {
	p := Path{segments: append([]Segment(nil), segs...)}
	p.raw = p.format()
	return p
}

func (p Path) format() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// String returns the path in its wire syntax.
func (p Path) String() string {
	return p.raw
}

// Segments returns a copy of the path's segments.
func (p Path) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// Last returns the final segment name, or "" for the root path.
func (p Path) Last() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1].Name
}

// Child returns p extended by one segment.
func (p Path) Child(name string, each bool) Path {
	return FromSegments(append(p.Segments(), Segment{Name: name, Each: each})...)
}

// HasArrayMarker reports whether any segment carries "[]".
func (p Path) HasArrayMarker() bool {
	for _, s := range p.segments {
		if s.Each {
			return true
		}
	}
	return false
}

// IsSystem reports whether raw is a reserved "_system." pseudo-path.
func IsSystem(raw string) bool {
	return strings.HasPrefix(raw, SystemPrefix)
}

// SystemName returns the name following SystemPrefix.
func SystemName(raw string) (string, bool) {
	if !IsSystem(raw) {
		return "", false
	}
	return strings.TrimPrefix(raw, SystemPrefix), true
}
