package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template pairs a system instruction with a user turn containing
// {{variable}} placeholders.
type Template struct {
	Name   string
	System string
	User   string
}

const systemInstruction = "You are a knowledge-base assistant. Answer clearly and concisely in the language of the question."

var (
	// Grounded is used when retrieval produced context.
	Grounded = Template{
		Name:   "grounded",
		System: systemInstruction,
		User: `Answer the question using the knowledge base excerpts below. If the excerpts are not enough, you may add general knowledge, but prefer the excerpts.

Excerpts:
{{context}}

Question: {{question}}`,
	}

	// General is used when there is no context to ground the answer in.
	General = Template{
		Name:   "general",
		System: systemInstruction,
		User: `No knowledge base content is available for this question. Answer from general knowledge.

Question: {{question}}`,
	}
)

// Render fills both parts of the template.
func (t Template) Render(vars map[string]string) (system, user string, err error) {
	system, err = Render(t.System, vars)
	if err != nil {
		return "", "", fmt.Errorf("render %s system prompt: %w", t.Name, err)
	}
	user, err = Render(t.User, vars)
	if err != nil {
		return "", "", fmt.Errorf("render %s user prompt: %w", t.Name, err)
	}
	return system, user, nil
}

// Render replaces {{variable}} placeholders in the template with values from vars.
func Render(template string, vars map[string]string) (string, error) {
	missing := findMissingVars(template, vars)
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	// Single pass, so values containing {{...}} are left as they are.
	result := variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		return vars[match[2:len(match)-2]]
	})

	return result, nil
}

// ExtractVariables returns a list of variable names found in the template.
func ExtractVariables(template string) []string {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

func findMissingVars(template string, vars map[string]string) []string {
	required := ExtractVariables(template)
	var missing []string
	for _, v := range required {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
