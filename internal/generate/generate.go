// Package generate adapts an LLM code-generation service to the publish
// pipeline. The pipeline only ever consumes one entry of the returned file
// map, the index document, and falls back to a placeholder when the service
// returns nothing usable.
package generate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// IndexFile is the single entry the pipeline consumes from a generated file map.
const IndexFile = "index.html"

// Placeholder is published when generation yields no index document.
const Placeholder = "<html><body><h1>Welcome</h1></body></html>"

// Attachment is a caller-supplied input file, carried as a data URI.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Request describes what to generate.
type Request struct {
	Brief        string
	Checks       []string
	Attachments  []Attachment
	ExistingCode string
	Round        int
}

// Service produces web artifacts from a task brief.
type Service interface {
	// GenerateApp returns a mapping of filenames to document bodies.
	GenerateApp(ctx context.Context, req Request) (map[string]string, error)

	// GenerateReadme returns README content for a published task.
	GenerateReadme(ctx context.Context, task, brief, repoURL, pagesURL string) (string, error)
}

// IndexDocument extracts the index entry from a generated file map, falling
// back to the placeholder when it is absent or empty.
func IndexDocument(files map[string]string) string {
	if doc, ok := files[IndexFile]; ok && strings.TrimSpace(doc) != "" {
		return doc
	}
	return Placeholder
}

// ParseFiles interprets raw model output as a file map. Models are asked for
// a JSON object mapping filenames to contents, but they routinely wrap it in
// markdown fences or answer with a bare HTML document; both are tolerated.
func ParseFiles(raw string) map[string]string {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		return map[string]string{}
	}

	if strings.HasPrefix(text, "{") {
		var files map[string]string
		if err := json.Unmarshal([]byte(text), &files); err == nil {
			return files
		}
	}
	return map[string]string{IndexFile: text}
}

// stripFences removes a single surrounding markdown code fence, with or
// without a language tag.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := text[3:]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// AttachmentText decodes a data-URI attachment into UTF-8 text for prompt
// inclusion. Binary or undecodable payloads return ("", false); the prompt
// then only mentions the attachment by name.
func AttachmentText(a Attachment) (string, bool) {
	_, payload, ok := strings.Cut(a.URL, ",")
	if !ok {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if decoded, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return "", false
		}
	}
	if !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}
