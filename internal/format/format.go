// ABOUTME: Text helpers for agent names and agent answers
// ABOUTME: Sanitizes deploy names, classifies answers as markdown or plain text, renders HTML

package format

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DefaultAgentName is used when sanitizing leaves nothing.
const DefaultAgentName = "default_agent"

const (
	MIMEMarkdown = "text/markdown"
	MIMEPlain    = "text/plain"
)

var (
	disallowedNameChars = regexp.MustCompile(`[^가-힣ㄱ-ㅎㅏ-ㅣa-zA-Z0-9_]`)

	// Any hit means the text is treated as markdown: emphasis, inline code,
	// headings, blockquotes, list bullets and links.
	markdownMarkers = regexp.MustCompile("(\\*\\*.*?\\*\\*|__.*?__|`.*?`|#+\\s|>\\s|[-*+]\\s|\\[.*?\\]\\(.*?\\))")

	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// SanitizeAgentName turns spaces into underscores and drops everything but
// Hangul, ASCII letters, digits and underscores. It is idempotent.
func SanitizeAgentName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = disallowedNameChars.ReplaceAllString(name, "")
	if name == "" {
		return DefaultAgentName
	}
	return name
}

// DetectMIMEType returns text/markdown if text contains markdown syntax,
// otherwise text/plain.
func DetectMIMEType(text string) string {
	if markdownMarkers.MatchString(text) {
		return MIMEMarkdown
	}
	return MIMEPlain
}

// RenderHTML converts markdown to HTML. Raw HTML in the source is escaped.
func RenderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
