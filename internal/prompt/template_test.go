package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render("Hi {{name}}, {{name}} asked {{q}}", map[string]string{"name": "Ana", "q": "{{x}}"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana, Ana asked {{x}}", out)
}

func TestRender_MissingVariables(t *testing.T) {
	_, err := Render("{{a}} {{b}}", map[string]string{"a": "1"})
	assert.ErrorContains(t, err, "missing template variables: b")
}

func TestExtractVariables(t *testing.T) {
	assert.Equal(t, []string{"context", "question"}, ExtractVariables(Grounded.User))
	assert.Equal(t, []string{"question"}, ExtractVariables(General.User))
}

func TestTemplateRender(t *testing.T) {
	system, user, err := Grounded.Render(map[string]string{"context": "chunk one", "question": "what?"})
	require.NoError(t, err)
	assert.Equal(t, systemInstruction, system)
	assert.Contains(t, user, "chunk one")
	assert.Contains(t, user, "Question: what?")

	_, _, err = General.Render(nil)
	assert.ErrorContains(t, err, "general user prompt")
}
