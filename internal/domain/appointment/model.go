package appointment

// Appointment is the normalized record decoded from one SIU message. Field
// order and JSON/YAML keys are the downstream contract.
type Appointment struct {
	AppointmentID       string   `json:"appointment_id" yaml:"appointment_id"`
	AppointmentDateTime string   `json:"appointment_datetime" yaml:"appointment_datetime"`
	Patient             Patient  `json:"patient" yaml:"patient"`
	Provider            Provider `json:"provider" yaml:"provider"`
	Location            string   `json:"location" yaml:"location"`
	Reason              string   `json:"reason" yaml:"reason"`
}

// Patient is decoded from the PID segment.
type Patient struct {
	ID        string `json:"id" yaml:"id"`
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	DOB       string `json:"dob" yaml:"dob"`
	Gender    string `json:"gender" yaml:"gender"`
}

// Provider is decoded from the PV1 attending doctor composite.
type Provider struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Defaults applied when a source field is empty.
const (
	DefaultLocation     = "Unknown"
	DefaultReason       = "N/A"
	UnknownProviderID   = "unknown"
	UnknownProviderName = "Dr. Unknown"
)
