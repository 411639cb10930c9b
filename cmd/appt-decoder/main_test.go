package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/appointments/internal/config"
	"github.com/ehr/appointments/internal/domain/appointment"
	"github.com/ehr/appointments/internal/platform/hl7v2"
	"github.com/ehr/appointments/internal/platform/telemetry"
)

const validMessage = "MSH|^~\\&|HIS|RIH|EKG|EKG|202201011230||SIU^S12|MSG00001|P|2.4\n" +
	"SCH|1234^5678|...|...|202305011230|...|...|...|Checkup|...|Room A\n" +
	"PID|||123456^^^MR||Doe^John||19900101|M\n" +
	"PV1||I|^^^|...|...|789^Smith^Jane"

const invalidDateMessage = "MSH|^~\\&|HIS|RIH|EKG|EKG|202201011230||SIU^S12|MSG00004|P|2.4\n" +
	"SCH|1234^1111|...|...|INVALIDDATE|...|...|...|Consultation|...|Room B\n" +
	"PID|||789101^^^MR||Smith^Anna||19880515|F\n" +
	"PV1||I|^^^|...|...|555^Jones^Emily"

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.hl7")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("DECODE_WORKERS", "1")
	t.Setenv("OUTPUT_FORMAT", "json")
}

// ---------------------------------------------------------------------------
// decode command
// ---------------------------------------------------------------------------

func TestRunDecode_PrintsAcceptedRecords(t *testing.T) {
	path := writeInput(t, validMessage+"\n#\n"+invalidDateMessage)

	var out bytes.Buffer
	if err := runDecode(&out, path, "json", 1, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var records []appointment.Appointment
	if err := json.Unmarshal(out.Bytes(), &records); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, out.String())
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].AppointmentID != "5678" {
		t.Errorf("expected appointment_id 5678, got %q", records[0].AppointmentID)
	}
}

func TestRunDecode_MissingFile(t *testing.T) {
	var out bytes.Buffer
	err := runDecode(&out, filepath.Join(t.TempDir(), "nonexistent.hl7"), "json", 1, zerolog.Nop())
	if err != nil {
		t.Fatalf("missing input must not be an error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("expected empty array, got %q", out.String())
	}
}

func TestDecodeCmd_WrongArgCount(t *testing.T) {
	setTestEnv(t)

	for _, args := range [][]string{{"decode"}, {"decode", "a.hl7", "b.hl7"}} {
		cmd := rootCmd()
		var stderr bytes.Buffer
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&stderr)
		cmd.SetArgs(args)

		if err := cmd.Execute(); err == nil {
			t.Errorf("args %q: expected error", args)
		}
		if !strings.Contains(stderr.String(), "usage:") {
			t.Errorf("args %q: expected usage message, got %q", args, stderr.String())
		}
	}
}

func TestDecodeCmd_WritesStdout(t *testing.T) {
	setTestEnv(t)
	path := writeInput(t, validMessage)

	cmd := rootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"decode", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v (stderr: %s)", err, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "[\n  {\n    \"appointment_id\": \"5678\"") {
		t.Errorf("unexpected stdout:\n%s", stdout.String())
	}
}

func TestDecodeCmd_YAMLFlag(t *testing.T) {
	setTestEnv(t)
	path := writeInput(t, validMessage)

	cmd := rootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"decode", "--format", "yaml", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "appointment_id: \"5678\"") {
		t.Errorf("expected yaml output, got:\n%s", stdout.String())
	}
}

// ---------------------------------------------------------------------------
// serve wiring
// ---------------------------------------------------------------------------

func testConfig() *config.Config {
	return &config.Config{LogLevel: "info", Port: "0", BodyLimit: "1M", DecodeWorkers: 1, OutputFormat: "json"}
}

func TestNewServer_DecodeRoute(t *testing.T) {
	decoder := appointment.NewDecoder(zerolog.Nop())
	e := newServer(decoder, telemetry.NewMetrics(), testConfig(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/decode", strings.NewReader(validMessage))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	var records []appointment.Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestNewServer_Health(t *testing.T) {
	e := newServer(appointment.NewDecoder(zerolog.Nop()), telemetry.NewMetrics(), testConfig(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestNewServer_Metrics(t *testing.T) {
	metrics := telemetry.NewMetrics()
	decoder := appointment.NewDecoder(zerolog.Nop(), appointment.WithRecorder(metrics))
	e := newServer(decoder, metrics, testConfig(), zerolog.Nop())

	raw := validMessage + "\n#\n" + invalidDateMessage
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/decode", strings.NewReader(raw))
	e.ServeHTTP(httptest.NewRecorder(), req)

	if got := metrics.RequestCount(http.MethodPost, "/api/v1/appointments/decode", http.StatusOK); got != 1 {
		t.Errorf("expected 1 counted request, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`appointment_messages_total{status="accepted",reason=""} 1`,
		`appointment_messages_total{status="rejected",reason="invalid_appointment_date"} 1`,
		"appointment_batches_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected /metrics to contain %q", want)
		}
	}
}

func TestNewServer_BodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.BodyLimit = "16"
	e := newServer(appointment.NewDecoder(zerolog.Nop()), telemetry.NewMetrics(), cfg, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/decode", strings.NewReader(validMessage))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestMLLPHandler_AckCodes(t *testing.T) {
	h := mllpHandler(appointment.NewDecoder(zerolog.Nop()))

	if got := h([]byte(strings.ReplaceAll(validMessage, "\n", "\r"))); got != hl7v2.AckAccept {
		t.Errorf("expected AA for valid message, got %q", got)
	}
	if got := h([]byte(invalidDateMessage)); got != hl7v2.AckError {
		t.Errorf("expected AE for rejected message, got %q", got)
	}
	if got := h([]byte("   ")); got != hl7v2.AckError {
		t.Errorf("expected AE for empty payload, got %q", got)
	}
}
