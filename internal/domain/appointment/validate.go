package appointment

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("appointment: validation failed")

// ValidationError names the first required field that failed.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("appointment: missing field %s", e.Field)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type requiredField struct {
	name  string
	value func(*Appointment) string
}

// requiredFields is checked in order; the first empty value is reported.
var requiredFields = []requiredField{
	{"appointment_id", func(a *Appointment) string { return a.AppointmentID }},
	{"appointment_datetime", func(a *Appointment) string { return a.AppointmentDateTime }},
	{"patient.id", func(a *Appointment) string { return a.Patient.ID }},
	{"patient.first_name", func(a *Appointment) string { return a.Patient.FirstName }},
	{"patient.last_name", func(a *Appointment) string { return a.Patient.LastName }},
	{"patient.dob", func(a *Appointment) string { return a.Patient.DOB }},
	{"patient.gender", func(a *Appointment) string { return a.Patient.Gender }},
}

// Validate accepts a candidate only when every required field is present and
// the provider is known.
func Validate(a *Appointment) error {
	for _, f := range requiredFields {
		if f.value(a) == "" {
			return &ValidationError{Field: f.name}
		}
	}
	if a.Provider.ID == UnknownProviderID {
		return &ValidationError{Field: "provider.id"}
	}
	return nil
}
