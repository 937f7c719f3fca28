package generate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	pperrors "git.home.luguber.info/inful/pagepub/internal/errors"
)

// maxAttachmentChars bounds how much of a text attachment is inlined into
// the prompt so oversized inputs cannot blow the model's context window.
const maxAttachmentChars = 20000

// Ensure Gemini implements Service at compile time.
var _ Service = (*Gemini)(nil)

// Gemini implements Service using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed generation service.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, pperrors.GenerationError(fmt.Errorf("connect to gemini: %w", err))
	}
	return &Gemini{client: client, model: model}, nil
}

// GenerateApp asks the model for a complete web artifact.
func (g *Gemini) GenerateApp(ctx context.Context, req Request) (map[string]string, error) {
	raw, err := g.generate(ctx, appSystemPrompt, BuildAppPrompt(req))
	if err != nil {
		return nil, pperrors.GenerationError(err)
	}
	return ParseFiles(raw), nil
}

// GenerateReadme asks the model for README content describing the task.
func (g *Gemini) GenerateReadme(ctx context.Context, task, brief, repoURL, pagesURL string) (string, error) {
	raw, err := g.generate(ctx, readmeSystemPrompt, BuildReadmePrompt(task, brief, repoURL, pagesURL))
	if err != nil {
		return "", pperrors.GenerationError(err)
	}
	return stripFences(strings.TrimSpace(raw)), nil
}

func (g *Gemini) generate(ctx context.Context, system, prompt string) (string, error) {
	temp := float32(0.4)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
		Temperature: &temp,
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: prompt}},
		}},
		config,
	)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", fmt.Errorf("gemini returned nil result")
	}
	return result.Text(), nil
}

const appSystemPrompt = `You are an expert front-end developer. You build complete, self-contained, single-file web applications.
Respond with a JSON object mapping filenames to file contents, e.g. {"index.html": "<!DOCTYPE html>..."}.
The index.html must be a complete document with inline CSS and JavaScript and no external build step.`

const readmeSystemPrompt = `You write concise README files for small generated web applications. Respond with plain markdown, no code fences around the whole document.`

// BuildAppPrompt assembles the user prompt from the brief, acceptance
// checks, attachments, and any prior-round code.
func BuildAppPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task brief:\n%s\n", req.Brief)

	if len(req.Checks) > 0 {
		sb.WriteString("\nThe result must satisfy these checks:\n")
		for _, check := range req.Checks {
			fmt.Fprintf(&sb, "- %s\n", check)
		}
	}

	for _, a := range req.Attachments {
		sb.WriteString("\n<attachment>\n")
		fmt.Fprintf(&sb, "<name>%s</name>\n", a.Name)
		if text, ok := AttachmentText(a); ok {
			if len(text) > maxAttachmentChars {
				text = text[:maxAttachmentChars]
			}
			fmt.Fprintf(&sb, "<content>%s</content>\n", text)
		} else {
			fmt.Fprintf(&sb, "<content>(binary attachment, reference it as %q)</content>\n", a.Name)
		}
		sb.WriteString("</attachment>\n")
	}

	if req.Round > 1 && req.ExistingCode != "" {
		fmt.Fprintf(&sb, "\nThis is revision round %d. Current code to revise:\n%s\n", req.Round, req.ExistingCode)
	}

	return sb.String()
}

// BuildReadmePrompt assembles the README prompt.
func BuildReadmePrompt(task, brief, repoURL, pagesURL string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a README.md for the project %q.\n", task)
	fmt.Fprintf(&sb, "It was generated from this brief:\n%s\n\n", brief)
	fmt.Fprintf(&sb, "Repository: %s\nLive site: %s\n", repoURL, pagesURL)
	sb.WriteString("Include a short description, a link to the live site, and a license note (MIT).")
	return sb.String()
}
