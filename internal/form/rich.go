package form

import (
	"html/template"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richPolicyOnce sync.Once
	richPolicy     *bluemonday.Policy

	boldRe = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// RichText formats advisory text from a result payload: **bold** becomes
// <strong>, newlines become <br>, and everything else is sanitised down to
// those two elements.
func RichText(s string) template.HTML {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "<br>")
	return template.HTML(richSanitizer().Sanitize(s))
}

func richSanitizer() *bluemonday.Policy {
	richPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("strong", "br")
		richPolicy = policy
	})
	return richPolicy
}
