// Package interpolator resolves `${path}` placeholders against a flux
// context and evaluates condition-node boolean expressions.
package interpolator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/orbitflux/flux/internal/flux"
)

// fullExprPattern matches a string that is *entirely* one placeholder,
// e.g. "${input.flag}" but not "x=${input.flag}".
var fullExprPattern = regexp.MustCompile(`^\$\{([^}]+)\}$`)

// anyExprPattern finds every `${...}` occurrence inside a larger string.
var anyExprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Resolve performs recursive value substitution over arbitrary JSON-shaped
// data (nil, bool, number, string, []any, map[string]any). Non-string
// values pass through unchanged; strings are resolved per §4.3's two modes.
func Resolve(value any, ctx *flux.Context) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return resolveString(v, ctx)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(item, ctx)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Resolve(item, ctx)
		}
		return out
	default:
		return v
	}
}

func resolveString(s string, ctx *flux.Context) any {
	if !strings.Contains(s, "${") {
		return s
	}
	if m := fullExprPattern.FindStringSubmatch(s); m != nil {
		value, _ := Lookup(m[1], ctx)
		return value
	}
	return anyExprPattern.ReplaceAllStringFunc(s, func(match string) string {
		path := match[2 : len(match)-1]
		value, _ := Lookup(path, ctx)
		return stringify(value)
	})
}

// stringify renders a looked-up value for embedding in string-mode
// interpolation. undefined/null render as empty string (§4.3); zero
// values are never blanked (§8 boundary: "x=${n}" with n=0 -> "x=0").
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Lookup splits a dotted path and walks fields/array indices starting from
// the context's top-level bindings. Any nil/missing intermediate yields
// (nil, false) ("undefined"), matching §4.3's lookup() contract.
func Lookup(path string, ctx *flux.Context) (any, bool) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 {
		return nil, false
	}
	current, ok := ctx.Lookup(segments[0])
	if !ok {
		return nil, false
	}
	for _, seg := range segments[1:] {
		current, ok = step(current, seg)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func step(current any, seg string) (any, bool) {
	if current == nil {
		return nil, false
	}
	switch c := current.(type) {
	case map[string]any:
		v, ok := c[seg]
		return v, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}

// Truthy coerces an arbitrary resolved value to boolean truthiness, used
// both as the evaluateCondition fallback and for bare `${path}` conditions
// without operators (§9 Open Question: both forms are supported).
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
