package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadLines(t *testing.T) {
	tempDir := t.TempDir()
	file := filepath.Join(tempDir, "requirements.txt")
	content := "# backend role\n5+ years Python experience\n\n  Kubernetes in production  \n"
	if err := os.WriteFile(file, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	got, err := ReadLines(file)
	if err != nil {
		t.Fatalf("ReadLines failed: %v", err)
	}
	want := []string{"5+ years Python experience", "Kubernetes in production"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadLines = %q, want %q", got, want)
	}

	if _, err := ReadLines(filepath.Join(tempDir, "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestResultFileName(t *testing.T) {
	tests := map[string]string{
		"/inbox/cv.pdf":         "cv.result.json",
		"letter.DOCX":           "letter.result.json",
		"/inbox/archive.v2.pdf": "archive.v2.result.json",
	}
	for input, want := range tests {
		if got := ResultFileName(input); got != want {
			t.Errorf("ResultFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestValidateInputFile(t *testing.T) {
	tempDir := t.TempDir()
	file := filepath.Join(tempDir, "cv.pdf")
	if err := os.WriteFile(file, []byte("%PDF"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if err := ValidateInputFile(file); err != nil {
		t.Errorf("Expected valid file, got %v", err)
	}
	if err := ValidateInputFile(tempDir); err == nil {
		t.Error("Expected error for directory")
	}
	if err := ValidateInputFile(""); err == nil {
		t.Error("Expected error for empty name")
	}
}
