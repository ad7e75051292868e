package normalize

import (
	"errors"
	"testing"
)

func TestParse_MergesDuplicateObjectKeys(t *testing.T) {
	raw := []byte(`{"properties":{"name":"Test Site"},"geometry":{"coordinates":[-71.05,42.36]},"properties":{"elevation":{"value":10.0}}}`)

	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if name, ok := doc.String("properties", "name"); !ok || name != "Test Site" {
		t.Errorf("properties.name = %q, %v; want %q, true", name, ok, "Test Site")
	}
	if elev, ok := doc.Float("properties", "elevation", "value"); !ok || elev != 10.0 {
		t.Errorf("properties.elevation.value = %v, %v; want 10, true", elev, ok)
	}
}

func TestParse_LaterScalarWins(t *testing.T) {
	doc, err := Parse([]byte(`{"a":1,"a":2,"b":{"c":1},"b":"flat"}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if v, _ := doc.Float("a"); v != 2 {
		t.Errorf("a = %v, want 2", v)
	}
	if v, _ := doc.String("b"); v != "flat" {
		t.Errorf("b = %q, want flat", v)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   \n"},
		{"truncated object", `{"properties":`},
		{"not json", "<html>503</html>"},
		{"trailing data", `{} {}`},
		{"non-string key", `{1:2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.raw)); err == nil {
				t.Errorf("Parse(%q) expected error, got nil", tt.raw)
			}
		})
	}
}

func TestParse_EmptyIsSentinel(t *testing.T) {
	if _, err := Parse(nil); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("Parse(nil) error = %v, want ErrEmptyDocument", err)
	}
}

func TestDocument_Lookup(t *testing.T) {
	doc, err := Parse([]byte(`{"a":[{"b":true},null],"n":null}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tests := []struct {
		name   string
		path   []any
		wantOK bool
	}{
		{"nested array object", []any{"a", 0, "b"}, true},
		{"null element", []any{"a", 1}, true},
		{"index out of range", []any{"a", 2}, false},
		{"negative index", []any{"a", -1}, false},
		{"key on array", []any{"a", "b"}, false},
		{"index on object", []any{0}, false},
		{"missing key", []any{"z"}, false},
		{"unsupported step", []any{1.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := doc.Lookup(tt.path...); ok != tt.wantOK {
				t.Errorf("Lookup(%v) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
		})
	}

	if _, ok := doc.Float("n"); ok {
		t.Error("Float on null should report absent")
	}
	var zero Document
	if _, ok := zero.Lookup("a"); ok {
		t.Error("zero Document should have no fields")
	}
}

func TestParse_OutOfRangeNumberOnlyAffectsItsField(t *testing.T) {
	doc, err := Parse([]byte(`{"foo":1e400,"properties":{"elevation":{"value":1e400},"temperature":{"value":15}}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if v, ok := doc.Float("properties", "elevation", "value"); ok {
		t.Errorf("out-of-range elevation = %v, true; want absent", v)
	}
	if v, ok := doc.Float("properties", "temperature", "value"); !ok || v != 15 {
		t.Errorf("temperature = %v, %v; want 15, true", v, ok)
	}
}
