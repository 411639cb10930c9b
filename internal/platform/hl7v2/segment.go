package hl7v2

import "strings"

const (
	// FieldSeparator separates fields within a segment line.
	FieldSeparator = "|"

	// ComponentSeparator separates the components of a composite field.
	ComponentSeparator = "^"
)

// SegmentType identifies a known segment by its three-character tag.
type SegmentType string

const (
	SegmentMSH SegmentType = "MSH"
	SegmentPID SegmentType = "PID"
	SegmentSCH SegmentType = "SCH"
	SegmentPV1 SegmentType = "PV1"
)

// segmentWidths holds the fixed field-array length of every known segment.
// Index 0 of each array is the segment tag itself.
var segmentWidths = map[SegmentType]int{
	SegmentMSH: 19,
	SegmentPID: 30,
	SegmentSCH: 25,
	SegmentPV1: 52,
}

// SegmentTypes returns the known segment types in a stable order.
func SegmentTypes() []SegmentType {
	return []SegmentType{SegmentMSH, SegmentPID, SegmentSCH, SegmentPV1}
}

// SegmentWidth returns the fixed field count for t. ok is false when t is
// not a known segment type.
func SegmentWidth(t SegmentType) (width int, ok bool) {
	width, ok = segmentWidths[t]
	return width, ok
}

// segmentTag returns the three-character tag a segment line starts with.
func segmentTag(line string) string {
	if len(line) < 3 {
		return line
	}
	return line[:3]
}

// Fields is a fixed-width positional field array. Reads past the populated
// range return the empty string rather than panicking.
type Fields struct {
	values []string
}

// newFields allocates a field array of the given width, every slot empty.
func newFields(width int) Fields {
	return Fields{values: make([]string, width)}
}

// Len returns the fixed width of the array.
func (f Fields) Len() int {
	return len(f.values)
}

// Get returns the field at index i, or "" when i is out of range.
func (f Fields) Get(i int) string {
	if i < 0 || i >= len(f.values) {
		return ""
	}
	return f.values[i]
}

// Components splits field i on the component separator. An empty field
// yields nil.
func (f Fields) Components(i int) []string {
	v := f.Get(i)
	if v == "" {
		return nil
	}
	return strings.Split(v, ComponentSeparator)
}

// Component returns component c of field i, or "" when either is absent.
func (f Fields) Component(i, c int) string {
	comps := f.Components(i)
	if c < 0 || c >= len(comps) {
		return ""
	}
	return comps[c]
}

// Values returns a copy of the field array.
func (f Fields) Values() []string {
	out := make([]string, len(f.values))
	copy(out, f.values)
	return out
}

// fill overwrites the array positionally from raw. Values at or beyond the
// fixed width are dropped.
func (f Fields) fill(raw []string) {
	for i, v := range raw {
		if i >= len(f.values) {
			return
		}
		f.values[i] = v
	}
}
