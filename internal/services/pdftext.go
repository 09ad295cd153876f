package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoExtractableText is returned for PDFs without a text layer.
var ErrNoExtractableText = errors.New("no extractable text found in pdf")

// PDFTextExtractor converts PDF bytes to normalized plain text.
type PDFTextExtractor struct{}

func NewPDFTextExtractor() *PDFTextExtractor {
	return &PDFTextExtractor{}
}

// Extract reads the whole document from r. Malformed input is reported
// as an error, including panics raised inside the PDF parser.
func (e *PDFTextExtractor) Extract(ctx context.Context, r io.Reader) (text string, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text = normalizeExtractedText(b.String())
	if text == "" {
		return "", ErrNoExtractableText
	}
	return text, nil
}

var (
	lineHyphenPattern = regexp.MustCompile(`-[ \t]*\r?\n\s*`)
	newlinePattern    = regexp.MustCompile(`(\r?\n)+`)
	spacePattern      = regexp.MustCompile(`\s{2,}`)
)

// normalizeExtractedText joins words hyphenated across lines, turns line
// breaks into spaces and collapses runs of whitespace.
func normalizeExtractedText(s string) string {
	s = lineHyphenPattern.ReplaceAllString(s, "")
	s = newlinePattern.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
