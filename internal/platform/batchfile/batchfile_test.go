package batchfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRead_TrimsContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.hl7")
	if err := os.WriteFile(path, []byte("\n  MSH|a\nPID|b  \n\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := Read(path, zerolog.Nop()); got != "MSH|a\nPID|b" {
		t.Errorf("unexpected content %q", got)
	}
}

func TestRead_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	got := Read(filepath.Join(t.TempDir(), "nonexistent.hl7"), logger)
	if got != "" {
		t.Errorf("expected empty batch, got %q", got)
	}
	if !strings.Contains(buf.String(), "input file not found") {
		t.Errorf("expected not-found diagnostic, got %q", buf.String())
	}
}

func TestRead_Directory(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	if got := Read(t.TempDir(), logger); got != "" {
		t.Errorf("expected empty batch for directory, got %q", got)
	}
	if !strings.Contains(buf.String(), "failed to read input file") {
		t.Errorf("expected read diagnostic, got %q", buf.String())
	}
}
