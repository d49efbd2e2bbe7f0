package notify

import (
	"regexp"
)

// placeholderRe matches {{identifier}} placeholders; identifier is word
// characters only. Anything fancier belongs in a real templating layer, not
// here.
var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render substitutes {{name}} placeholders in tmpl with values from vars.
// Placeholders with no matching variable are left untouched so authors can
// spot unresolved ones during preview. The operation is pure and idempotent.
func Render(tmpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// ExtractVariables returns the distinct placeholder names referenced by the
// given template strings, in first-appearance order. Used to auto-detect a
// template's declared variable set when the author hasn't listed one.
func ExtractVariables(templates ...string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, tmpl := range templates {
		for _, match := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
			if !seen[match[1]] {
				seen[match[1]] = true
				names = append(names, match[1])
			}
		}
	}
	return names
}
