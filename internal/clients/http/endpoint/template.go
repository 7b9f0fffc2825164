package endpoint

import (
	"fmt"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// ExpandTemplate replaces every {name} placeholder of template with the path-escaped value
// of name. Unknown placeholders and unbalanced braces are errors.
func ExpandTemplate(template string, values map[string]string) (string, error) {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return "", fmt.Errorf("url template %q: unbalanced '}'", template)
			}
			b.WriteString(rest)
			return b.String(), nil
		}
		if strings.IndexByte(rest[:open], '}') >= 0 {
			return "", fmt.Errorf("url template %q: unbalanced '}'", template)
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return "", fmt.Errorf("url template %q: unterminated placeholder", template)
		}
		name := strings.TrimSpace(rest[open+1 : open+closing])
		value, ok := values[name]
		if !ok || name == "" {
			return "", fmt.Errorf("url template %q: no value for placeholder %q", template, name)
		}
		escaped, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
		if err != nil {
			return "", fmt.Errorf("url template %q: escape %s: %w", template, name, err)
		}
		b.WriteString(rest[:open])
		b.WriteString(escaped)
		rest = rest[open+closing+1:]
	}
}
