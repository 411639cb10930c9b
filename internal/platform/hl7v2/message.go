package hl7v2

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSegment is returned for segment lines whose tag is not one of
	// the known segment types.
	ErrUnknownSegment = errors.New("hl7v2: unknown segment")

	// ErrRepeatedSegment is returned when a message carries a known segment
	// type more than once. The first occurrence is kept.
	ErrRepeatedSegment = errors.New("hl7v2: repeated segment")
)

// MSH field positions in the raw "|" split. Index 1 holds the encoding
// characters, so MSH-n lives at index n-1.
const (
	mshSendingApp   = 2
	mshSendingFac   = 3
	mshReceivingApp = 4
	mshReceivingFac = 5
	mshMessageType  = 8
	mshControlID    = 9
	mshVersion      = 11
)

// FieldTable holds one fixed-width field array per known segment type for a
// single message. A fresh table is allocated for every message.
type FieldTable struct {
	segments map[SegmentType]Fields
	seen     map[SegmentType]bool
}

// NewFieldTable returns a table with every known segment pre-populated with
// empty fields.
func NewFieldTable() *FieldTable {
	t := &FieldTable{
		segments: make(map[SegmentType]Fields, len(segmentWidths)),
		seen:     make(map[SegmentType]bool, len(segmentWidths)),
	}
	for st, width := range segmentWidths {
		t.segments[st] = newFields(width)
	}
	return t
}

// Segment returns the field array for st. Segments absent from the message
// come back as all-empty arrays; unknown types come back zero-width.
func (t *FieldTable) Segment(st SegmentType) Fields {
	return t.segments[st]
}

// Has reports whether the message supplied a segment of type st.
func (t *FieldTable) Has(st SegmentType) bool {
	return t.seen[st]
}

// Map classifies line by its tag and stores its "|"-separated fields in the
// matching array. Unknown tags return ErrUnknownSegment; a second segment of
// an already populated type returns ErrRepeatedSegment. Neither changes the
// table.
func (t *FieldTable) Map(line string) (SegmentType, error) {
	tag := segmentTag(line)
	st := SegmentType(tag)
	fields, ok := t.segments[st]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSegment, tag)
	}
	if t.seen[st] {
		return st, fmt.Errorf("%w: %s", ErrRepeatedSegment, st)
	}

	fields.fill(strings.Split(line, FieldSeparator))
	t.seen[st] = true
	return st, nil
}

// ControlID returns MSH-10.
func (t *FieldTable) ControlID() string {
	return t.Segment(SegmentMSH).Get(mshControlID)
}

// MessageType returns MSH-9 (e.g. "SIU^S12").
func (t *FieldTable) MessageType() string {
	return t.Segment(SegmentMSH).Get(mshMessageType)
}

// Version returns MSH-12.
func (t *FieldTable) Version() string {
	return t.Segment(SegmentMSH).Get(mshVersion)
}

// Header returns the MSH routing fields: sending application and facility,
// then receiving application and facility.
func (t *FieldTable) Header() (sendingApp, sendingFac, receivingApp, receivingFac string) {
	msh := t.Segment(SegmentMSH)
	return msh.Get(mshSendingApp), msh.Get(mshSendingFac), msh.Get(mshReceivingApp), msh.Get(mshReceivingFac)
}

// ParseMessage maps every segment line of one message into a fresh table.
// Lines that cannot be mapped are reported in diags and otherwise ignored.
func ParseMessage(message string) (table *FieldTable, diags []error) {
	table = NewFieldTable()
	for _, line := range SplitSegments(message) {
		if _, err := table.Map(line); err != nil {
			diags = append(diags, err)
		}
	}
	return table, diags
}
