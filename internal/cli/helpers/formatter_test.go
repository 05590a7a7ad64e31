package helpers

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// TestData is a test struct with header tags.
type TestData struct {
	Path  string `header:"PATH" json:"path"`
	Size  int    `header:"SIZE" json:"size"`
	Extra string // No header tag, should be ignored
}

var testRows = []TestData{
	{Path: "/usr/lib/libfoo.so", Size: 1, Extra: "ignored"},
	{Path: "/usr/lib/libbar.so", Size: 2, Extra: "also ignored"},
}

func TestNewFormatter(t *testing.T) {
	for _, f := range RowFormats {
		got, err := NewFormatter(f)
		if err != nil || got == nil {
			t.Errorf("NewFormatter(%q) = %v, %v", f, got, err)
		}
	}
	if _, err := NewFormatter(FormatMarkdown); err == nil {
		t.Error("markdown is not a row format")
	}
	if _, err := NewFormatter(OutputFormat("unsupported")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestTextFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).Format(testRows, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "/usr/lib/libfoo.so\n/usr/lib/libbar.so\n"
	if buf.String() != want {
		t.Errorf("Format() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := (&TextFormatter{}).Format([]TestData{}, &buf); err != nil || buf.Len() != 0 {
		t.Errorf("empty slice: err = %v, output %q", err, buf.String())
	}

	if err := (&TextFormatter{}).Format(testRows[0], &buf); err == nil {
		t.Error("expected error for non-slice data")
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(testRows, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	var got []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(got) != 2 || got[0]["path"] != "/usr/lib/libfoo.so" {
		t.Errorf("unexpected JSON: %s", buf.String())
	}
}

func TestTableFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(testRows, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "PATH") || !strings.Contains(lines[0], "SIZE") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if strings.Contains(buf.String(), "ignored") {
		t.Error("untagged field leaked into table")
	}
}

func TestCSVFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := (&CSVFormatter{}).Format(testRows, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "PATH,SIZE\n/usr/lib/libfoo.so,1\n/usr/lib/libbar.so,2\n"
	if buf.String() != want {
		t.Errorf("Format() = %q, want %q", buf.String(), want)
	}
}
