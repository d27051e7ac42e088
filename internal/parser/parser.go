// Package parser extracts plain text and metadata from uploaded documents.
// Parsing is a pure transform; callers decide whether to persist the result.
package parser

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/soyeahso/storyforge/internal/domain"
)

var (
	// ErrUnsupportedType is returned for files whose MIME type and extension
	// are both outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrEmptyExtraction is returned when the extracted text is shorter than
	// domain.MinParsedContentLength after trimming.
	ErrEmptyExtraction = errors.New("extracted content is empty or too short")

	// ErrMalformed is returned when a document of a supported type cannot be read.
	ErrMalformed = errors.New("malformed document")
)

// AllowedMIMETypes lists the accepted upload MIME types.
var AllowedMIMETypes = []string{"application/pdf", "text/markdown", "text/x-markdown", "text/plain"}

// AllowedExtensions lists the accepted file extensions, lower-cased.
var AllowedExtensions = []string{".pdf", ".md", ".markdown", ".txt"}

// Result is the outcome of a successful parse.
type Result struct {
	Type     domain.ResourceType `json:"type"`
	Text     string              `json:"text"`
	Metadata map[string]any      `json:"metadata"`
}

// DetectType resolves the resource type for a file name and MIME type.
func DetectType(fileName, mimeType string) (domain.ResourceType, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".pdf":
		return domain.ResourceTypePDF, nil
	case ".md", ".markdown":
		return domain.ResourceTypeMarkdown, nil
	case ".txt":
		return domain.ResourceTypeText, nil
	}

	// Any other extension is read as text once the MIME type is allowed.
	if isAllowedMIME(mimeType) {
		return domain.ResourceTypeText, nil
	}

	if ext == "" {
		ext = "(none)"
	}
	return "", fmt.Errorf("%w: extension %s, mime %q", ErrUnsupportedType, ext, mimeType)
}

// Parse extracts text from data. The type is chosen by DetectType; the
// result must contain at least domain.MinParsedContentLength characters.
func Parse(data []byte, fileName, mimeType string) (Result, error) {
	typ, err := DetectType(fileName, mimeType)
	if err != nil {
		return Result{}, err
	}

	res := Result{Type: typ, Metadata: map[string]any{}}
	switch typ {
	case domain.ResourceTypePDF:
		text, pages, err := extractPDF(data)
		if err != nil {
			return Result{}, err
		}
		res.Text = text
		res.Metadata["pages"] = pages
	case domain.ResourceTypeMarkdown:
		res.Text = decodeText(data)
		title, headings := markdownOutline([]byte(res.Text))
		if title != "" {
			res.Metadata["title"] = title
		}
		if len(headings) > 0 {
			res.Metadata["headings"] = headings
		}
	default:
		res.Text = decodeText(data)
	}

	if !domain.HasUsableContent(res.Text) {
		return Result{}, fmt.Errorf("%s: %w", fileName, ErrEmptyExtraction)
	}

	res.Metadata["characters"] = utf8.RuneCountInString(res.Text)
	res.Metadata["words"] = len(strings.Fields(res.Text))
	res.Metadata["lines"] = strings.Count(res.Text, "\n") + 1
	return res, nil
}

// decodeText reads data as UTF-8, dropping a byte-order mark and replacing
// invalid sequences.
func decodeText(data []byte) string {
	s := strings.TrimPrefix(string(data), "\uFEFF")
	return strings.ToValidUTF8(s, "\uFFFD")
}

func isAllowedMIME(mimeType string) bool {
	mt := normalizeMIME(mimeType)
	for _, allowed := range AllowedMIMETypes {
		if mt == allowed {
			return true
		}
	}
	return false
}

func normalizeMIME(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}
