package domain

import (
	"strings"
	"time"
)

// MinParsedContentLength is the minimum number of trimmed characters a parsed
// document must contain to be stored.
const MinParsedContentLength = 10

// ResourceType classifies a stored document by its source format.
type ResourceType string

const (
	ResourceTypePDF      ResourceType = "pdf"
	ResourceTypeMarkdown ResourceType = "md"
	ResourceTypeText     ResourceType = "text"
)

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceTypePDF, ResourceTypeMarkdown, ResourceTypeText:
		return true
	}
	return false
}

// Resource is a parsed document available for reuse across sessions.
// OriginalContent holds the raw upload, base64-encoded.
type Resource struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	Type            ResourceType `json:"type"`
	FileName        string       `json:"fileName"`
	FileSize        int64        `json:"fileSize"`
	OriginalContent string       `json:"originalContent,omitempty"`
	ParsedContent   string       `json:"parsedContent"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Matches reports whether query occurs case-insensitively in the title,
// description, or parsed content. An empty query matches everything.
func (r Resource) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.Title), q) ||
		strings.Contains(strings.ToLower(r.Description), q) ||
		strings.Contains(strings.ToLower(r.ParsedContent), q)
}

// HasUsableContent reports whether the parsed content meets the minimum length.
func HasUsableContent(text string) bool {
	return len([]rune(strings.TrimSpace(text))) >= MinParsedContentLength
}
