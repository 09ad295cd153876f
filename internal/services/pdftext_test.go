package services

import (
	"context"
	"strings"
	"testing"
)

func TestNormalizeExtractedText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hyphenation", "Photo-\nsynthese ist wichtig.", "Photosynthese ist wichtig."},
		{"hyphenation with crlf", "exam-  \r\n   ple", "example"},
		{"line breaks", "line one\nline two\r\n\r\nline three", "line one line two line three"},
		{"whitespace runs", "  a   b \t\t c  ", "a b c"},
		{"inline hyphen kept", "well-known fact", "well-known fact"},
		{"empty", "\n\n  \n", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeExtractedText(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPDFTextExtractor_RejectsGarbage(t *testing.T) {
	e := NewPDFTextExtractor()

	if _, err := e.Extract(context.Background(), strings.NewReader("this is not a pdf")); err == nil {
		t.Fatal("expected error for non-pdf input")
	}
	if _, err := e.Extract(context.Background(), strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}
