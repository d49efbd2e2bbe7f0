package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_Substitution(t *testing.T) {
	vars := map[string]string{
		"userName":      "Jo",
		"evidenceTitle": "Damp in hallway",
	}

	out := Render("Hello {{userName}}, re: {{evidenceTitle}}", vars)
	assert.Equal(t, "Hello Jo, re: Damp in hallway", out)
}

func TestRender_UnknownPlaceholderPassesThrough(t *testing.T) {
	out := Render("Hello {{userName}}, code {{missing}}", map[string]string{"userName": "Jo"})
	assert.Equal(t, "Hello Jo, code {{missing}}", out)
}

func TestRender_EmptyValueSubstitutes(t *testing.T) {
	// An empty string value is still a substitution, not a passthrough.
	out := Render("[{{userName}}]", map[string]string{"userName": ""})
	assert.Equal(t, "[]", out)
}

func TestRender_Idempotent(t *testing.T) {
	vars := map[string]string{"a": "1", "b": "2"}
	tmpl := "{{a}} and {{b}} and {{c}}"

	once := Render(tmpl, vars)
	twice := Render(once, vars)
	assert.Equal(t, once, twice)
}

func TestRender_NonIdentifierBracesUntouched(t *testing.T) {
	tmpl := "{{not a placeholder}} {{ spaced }} {{ok}}"
	out := Render(tmpl, map[string]string{"ok": "yes"})
	assert.Equal(t, "{{not a placeholder}} {{ spaced }} yes", out)
}

func TestExtractVariables(t *testing.T) {
	names := ExtractVariables("Re: {{evidenceTitle}}", "Hi {{userName}}, about {{evidenceTitle}}: {{rejectionReason}}")
	assert.Equal(t, []string{"evidenceTitle", "userName", "rejectionReason"}, names)
}

func TestExtractVariables_NoneFound(t *testing.T) {
	assert.Empty(t, ExtractVariables("no placeholders here"))
}
