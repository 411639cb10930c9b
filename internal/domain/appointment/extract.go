package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/appointments/internal/platform/hl7v2"
)

// Field positions in the raw "|" split of each segment (index 0 is the tag).
const (
	schPlacerID  = 1
	schStartTime = 4
	schReason    = 8
	schLocation  = 9

	pidIdentifier = 3
	pidName       = 5
	pidBirthDate  = 7
	pidSex        = 8

	pv1AttendingDoctor = 6
)

const (
	hl7DateTimeLayout = "200601021504"
	hl7DateLayout     = "20060102"

	// The start time is not converted between zones; the Z is appended to
	// the naive wall-clock value.
	isoDateTimeLayout = "2006-01-02T15:04:05"
	isoDateLayout     = "2006-01-02"
)

// ErrInvalidAppointmentDate is returned when SCH field 4 does not parse as
// YYYYMMDDHHMM.
var ErrInvalidAppointmentDate = errors.New("appointment: invalid appointment date")

// DecodeError is returned for any extraction failure other than an invalid
// appointment date.
type DecodeError struct {
	Field string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("appointment: decode %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Extract builds a candidate appointment from one message's field table.
// No panic escapes: anything raised while decoding comes back as a
// *DecodeError.
func Extract(table *hl7v2.FieldTable) (appt *Appointment, err error) {
	defer func() {
		if r := recover(); r != nil {
			appt = nil
			err = &DecodeError{Field: "message", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	sch := table.Segment(hl7v2.SegmentSCH)
	pid := table.Segment(hl7v2.SegmentPID)
	pv1 := table.Segment(hl7v2.SegmentPV1)

	start, err := appointmentDateTime(sch.Get(schStartTime))
	if err != nil {
		return nil, err
	}

	dob, err := birthDate(pid.Get(pidBirthDate))
	if err != nil {
		return nil, err
	}

	return &Appointment{
		AppointmentID:       appointmentID(sch.Get(schPlacerID)),
		AppointmentDateTime: start,
		Patient: Patient{
			ID:        pid.Component(pidIdentifier, 0),
			LastName:  pid.Component(pidName, 0),
			FirstName: pid.Component(pidName, 1),
			DOB:       dob,
			Gender:    pid.Get(pidSex),
		},
		Provider: provider(pv1.Components(pv1AttendingDoctor)),
		Location: orDefault(sch.Get(schLocation), DefaultLocation),
		Reason:   orDefault(sch.Get(schReason), DefaultReason),
	}, nil
}

// appointmentID takes the second component of a composite ID, or the whole
// field when it has no component separator.
func appointmentID(raw string) string {
	if !strings.Contains(raw, hl7v2.ComponentSeparator) {
		return raw
	}
	return strings.Split(raw, hl7v2.ComponentSeparator)[1]
}

func appointmentDateTime(raw string) (string, error) {
	t, err := time.Parse(hl7DateTimeLayout, raw)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidAppointmentDate, raw, err)
	}
	return t.Format(isoDateTimeLayout) + "Z", nil
}

func birthDate(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	t, err := time.Parse(hl7DateLayout, raw)
	if err != nil {
		return "", &DecodeError{Field: "patient.dob", Value: raw, Err: err}
	}
	return t.Format(isoDateLayout), nil
}

func provider(parts []string) Provider {
	p := Provider{ID: UnknownProviderID, Name: UnknownProviderName}
	if len(parts) > 0 {
		p.ID = parts[0]
	}
	if len(parts) > 2 {
		p.Name = fmt.Sprintf("Dr. %s %s", parts[2], parts[1])
	}
	return p
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
