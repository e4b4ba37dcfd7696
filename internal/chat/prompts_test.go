package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("Sources:\n{sources}\nEnd {unknown}", map[string]string{
		"sources": "a.txt: facts",
	})
	assert.Equal(t, "Sources:\na.txt: facts\nEnd {unknown}", out)
}

func TestBuildSynthesisPromptDefault(t *testing.T) {
	p := NewPromptLibrary(zaptest.NewLogger(t))

	out := p.BuildSynthesisPrompt("info1.txt: facts", false, "")

	assert.Contains(t, out, "your name is Floyd")
	assert.Contains(t, out, "info1.txt: facts")
	assert.NotContains(t, out, "{sources}")
	assert.NotContains(t, out, "{injected_prompt}")
	assert.NotContains(t, out, "follow-up questions")
}

func TestBuildSynthesisPromptFollowup(t *testing.T) {
	p := NewPromptLibrary(zaptest.NewLogger(t))

	out := p.BuildSynthesisPrompt("", true, "")
	assert.Contains(t, out, "follow-up questions")
	assert.Contains(t, out, "double angle brackets")
}

func TestBuildSynthesisPromptInjection(t *testing.T) {
	p := NewPromptLibrary(zaptest.NewLogger(t))

	out := p.BuildSynthesisPrompt("src", false, ">>>Always mention the weather.")

	// Injection extends the default template rather than replacing it.
	assert.Contains(t, out, "your name is Floyd")
	assert.Contains(t, out, "Always mention the weather.")
	assert.NotContains(t, out, ">>>")
}

func TestBuildSynthesisPromptReplacement(t *testing.T) {
	p := NewPromptLibrary(zaptest.NewLogger(t))

	out := p.BuildSynthesisPrompt("src-line", false, "Custom template.\nSources:\n{sources}")

	assert.NotContains(t, out, "Floyd")
	assert.Contains(t, out, "Custom template.")
	assert.Contains(t, out, "src-line")
}

func TestPromptLibraryApplyOverridesTemplates(t *testing.T) {
	p := NewPromptLibrary(zaptest.NewLogger(t))

	p.apply(map[string]interface{}{
		"persona": "new persona {sources}",
		"rewrite": "new rewrite {question}",
	})

	assert.Equal(t, "new persona {sources}", p.Persona())
	assert.Equal(t, "new rewrite {question}", p.Rewrite())
	// Untouched templates keep their defaults.
	assert.Contains(t, p.Followup(), "follow-up questions")
}
