// Package extract provides plain-text extraction from uploaded PDF files.
package extract

import (
	"errors"
	"fmt"
	"os"

	"docquery/pkg/utils"
)

// ErrNoText reports a PDF that was read successfully but yielded no text
// (scanned images, empty pages). Callers treat this as unprocessable rather
// than indexing an empty document.
var ErrNoText = errors.New("no text could be extracted")

// Extractor extracts plain text from PDF documents.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content)
}

// ExtractBytes extracts text from raw PDF bytes. Page texts are joined with
// newlines and runs of whitespace are collapsed so chunk boundaries are not
// dominated by layout artifacts. Returns ErrNoText when the document contains
// no extractable text.
func (e *Extractor) ExtractBytes(content []byte) (string, error) {
	text, err := extractPDF(content)
	if err != nil {
		return "", err
	}
	text = utils.CollapseWhitespace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
