// ABOUTME: Tests for agent name sanitizing, MIME detection, and markdown rendering

package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAgentName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"calculator agent", "calculator_agent"},
		{"날씨 봇", "날씨_봇"},
		{"ㄱㄴ ㅏㅓ", "ㄱㄴ_ㅏㅓ"},
		{"my-agent!v2", "myagentv2"},
		{"  ", "__"},
		{"", DefaultAgentName},
		{"!!!", DefaultAgentName},
		{"日本語", DefaultAgentName},
		{"emoji🤖bot", "emojibot"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeAgentName(tt.in))
		})
	}
}

func TestSanitizeAgentName_Idempotent(t *testing.T) {
	inputs := []string{"calculator agent", "날씨 봇!", "", "a-b c", "$$$", "x y z 123", "ㅎㅎ ㅋㅋ"}
	for _, in := range inputs {
		once := SanitizeAgentName(in)
		assert.Equal(t, once, SanitizeAgentName(once), "input %q", in)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain number", "24642", MIMEPlain},
		{"plain sentence", "The answer is 24642.", MIMEPlain},
		{"bold", "this is **important**", MIMEMarkdown},
		{"underscore bold", "__also__ bold", MIMEMarkdown},
		{"inline code", "run `go test`", MIMEMarkdown},
		{"heading", "# Title", MIMEMarkdown},
		{"blockquote", "> quoted", MIMEMarkdown},
		{"list dash", "- item", MIMEMarkdown},
		{"list plus", "+ item", MIMEMarkdown},
		{"link", "see [docs](http://x)", MIMEMarkdown},
		{"hyphenated word", "well-known", MIMEPlain},
		{"empty", "", MIMEPlain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIMEType(tt.text))
		})
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# Title\n\n**bold** and a [link](http://x)")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, `<a href="http://x">link</a>`)

	escaped, err := RenderHTML("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.False(t, strings.Contains(escaped, "<script>"), "raw HTML must not pass through: %s", escaped)
}
