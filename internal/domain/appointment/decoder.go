package appointment

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/appointments/internal/platform/hl7v2"
)

// Status is the result kind of decoding one message.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Reason classifies a rejection.
type Reason string

const (
	ReasonInvalidDate Reason = "invalid_appointment_date"
	ReasonDecode      Reason = "decode_error"
	ReasonValidation  Reason = "validation"
)

// Outcome is the result of decoding one message of a batch.
type Outcome struct {
	Index       int          `json:"index"`
	ControlID   string       `json:"control_id,omitempty"`
	Status      Status       `json:"status"`
	Reason      Reason       `json:"reason,omitempty"`
	Field       string       `json:"field,omitempty"`
	Error       string       `json:"error,omitempty"`
	Warnings    []string     `json:"segment_warnings,omitempty"`
	Appointment *Appointment `json:"appointment,omitempty"`

	Err error `json:"-"`
}

// Accepted reports whether the message produced a record.
func (o Outcome) Accepted() bool { return o.Status == StatusAccepted }

// Report collects every outcome of one batch in message order.
type Report struct {
	RunID    string    `json:"run_id"`
	Accepted int       `json:"accepted"`
	Rejected int       `json:"rejected"`
	Outcomes []Outcome `json:"outcomes"`
}

// Appointments returns the accepted records in message order. The result is
// never nil.
func (r Report) Appointments() []Appointment {
	out := make([]Appointment, 0, r.Accepted)
	for _, o := range r.Outcomes {
		if o.Accepted() {
			out = append(out, *o.Appointment)
		}
	}
	return out
}

// DecodeMessage maps, extracts and validates one message. It has no side
// effects; segment diagnostics are returned in the outcome.
func DecodeMessage(index int, message string) Outcome {
	table, diags := hl7v2.ParseMessage(message)

	o := Outcome{Index: index, ControlID: table.ControlID()}
	for _, d := range diags {
		o.Warnings = append(o.Warnings, d.Error())
	}

	appt, err := Extract(table)
	if err == nil {
		err = Validate(appt)
	}
	if err != nil {
		return o.reject(err)
	}

	o.Status = StatusAccepted
	o.Appointment = appt
	return o
}

func (o Outcome) reject(err error) Outcome {
	o.Status = StatusRejected
	o.Err = err
	o.Error = err.Error()

	var verr *ValidationError
	var derr *DecodeError
	switch {
	case errors.Is(err, ErrInvalidAppointmentDate):
		o.Reason = ReasonInvalidDate
		o.Field = "appointment_datetime"
	case errors.As(err, &verr):
		o.Reason = ReasonValidation
		o.Field = verr.Field
	case errors.As(err, &derr):
		o.Reason = ReasonDecode
		o.Field = derr.Field
	default:
		o.Reason = ReasonDecode
	}
	return o
}

// Recorder receives one observation per decoded message and batch.
type Recorder interface {
	ObserveMessage(status, reason string)
	ObserveBatch(d time.Duration)
}

// Decoder runs the batch pipeline and logs a diagnostic for every message it
// rejects or segment it ignores.
type Decoder struct {
	logger   zerolog.Logger
	workers  int
	recorder Recorder
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithWorkers decodes up to n messages at once. Output order is unaffected.
func WithWorkers(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRecorder reports decode metrics to r.
func WithRecorder(r Recorder) Option {
	return func(d *Decoder) {
		d.recorder = r
	}
}

// NewDecoder creates a Decoder that logs through logger.
func NewDecoder(logger zerolog.Logger, opts ...Option) *Decoder {
	d := &Decoder{
		logger:  logger.With().Str("component", "appointment_decoder").Logger(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode returns the accepted records of raw in message order. Empty input
// yields an empty list.
func (d *Decoder) Decode(raw string) []Appointment {
	return d.DecodeReport(raw).Appointments()
}

// DecodeReport decodes every message of raw and returns all outcomes.
func (d *Decoder) DecodeReport(raw string) Report {
	start := time.Now()
	messages := hl7v2.SplitBatch(raw)
	report := Report{
		RunID:    uuid.New().String(),
		Outcomes: d.decodeAll(messages),
	}

	log := d.logger.With().Str("run_id", report.RunID).Logger()
	for _, o := range report.Outcomes {
		d.logOutcome(log, o)
		if o.Accepted() {
			report.Accepted++
		} else {
			report.Rejected++
		}
		if d.recorder != nil {
			d.recorder.ObserveMessage(string(o.Status), string(o.Reason))
		}
	}
	if d.recorder != nil {
		d.recorder.ObserveBatch(time.Since(start))
	}

	log.Debug().
		Int("messages", len(messages)).
		Int("accepted", report.Accepted).
		Int("rejected", report.Rejected).
		Msg("batch decoded")

	return report
}

func (d *Decoder) decodeAll(messages []string) []Outcome {
	outcomes := make([]Outcome, len(messages))
	if d.workers <= 1 || len(messages) < 2 {
		for i, msg := range messages {
			outcomes[i] = DecodeMessage(i, msg)
		}
		return outcomes
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(d.workers, len(messages)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = DecodeMessage(i, messages[i])
			}
		}()
	}
	for i := range messages {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

func (d *Decoder) logOutcome(log zerolog.Logger, o Outcome) {
	for _, s := range o.Warnings {
		log.Warn().
			Int("message_index", o.Index).
			Str("control_id", o.ControlID).
			Str("segment", s).
			Msg("ignoring segment")
	}

	if o.Accepted() {
		return
	}

	evt := log.Warn().
		Int("message_index", o.Index).
		Str("control_id", o.ControlID).
		Str("reason", string(o.Reason)).
		Str("field", o.Field).
		Err(o.Err)

	switch o.Reason {
	case ReasonInvalidDate:
		evt.Msg("invalid appointment date, skipping message")
	case ReasonValidation:
		evt.Msg("missing required field, skipping message")
	default:
		evt.Msg("failed to decode message, skipping")
	}
}
