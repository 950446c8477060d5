package notification

import (
	"encoding/json"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// Render substitutes every {{ dotted.path }} token in template by resolving
// the path through nested maps in ctx. Missing or nil values become the
// empty string; non-string values are JSON-stringified. There are no loops
// or conditionals; the renderer is deliberately minimal so templates stay
// auditable and rendering stays side-effect free.
func Render(template string, ctx map[string]any) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		match := tokenPattern.FindStringSubmatch(token)
		value, ok := lookupPath(ctx, match[1])
		if !ok || value == nil {
			return ""
		}
		if s, isString := value.(string); isString {
			return s
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(encoded)
	})
}

func lookupPath(ctx map[string]any, path string) (any, bool) {
	current := any(ctx)
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
