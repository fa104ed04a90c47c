package template

import (
	"fmt"
	"regexp"
)

// Engine performs ${name} parameter substitution against the workflow
// context's shared data. Tokens whose name is not present in the context are
// left verbatim so later steps (or the shell) can still see them.
type Engine struct {
	// Pattern matches substitution tokens like ${identifier}
	tokenPattern *regexp.Regexp
}

// New creates a new substitution engine.
func New() *Engine {
	return &Engine{
		tokenPattern: regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`),
	}
}

// Substitute replaces ${name} tokens in a value with the string form of the
// matching context entry. Maps and slices are walked recursively;
// non-templatable types are returned as-is.
func (e *Engine) Substitute(value interface{}, data map[string]interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return e.SubstituteString(v, data)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			result[key] = e.Substitute(val, data)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = e.Substitute(val, data)
		}
		return result
	default:
		return value
	}
}

// SubstituteString replaces every ${name} token whose name is a key in data.
// Unmatched tokens are left verbatim; substitution never fails.
func (e *Engine) SubstituteString(s string, data map[string]interface{}) string {
	return e.tokenPattern.ReplaceAllStringFunc(s, func(token string) string {
		name := e.tokenPattern.FindStringSubmatch(token)[1]
		value, exists := data[name]
		if !exists {
			return token
		}
		return stringify(value)
	})
}

// SubstituteParams applies substitution to every value of a parameter map,
// returning a new map so the step spec stays untouched.
func (e *Engine) SubstituteParams(params map[string]interface{}, data map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	resolved := make(map[string]interface{}, len(params))
	for key, value := range params {
		resolved[key] = e.Substitute(value, data)
	}
	return resolved
}

// Tokens returns the distinct token names referenced by a value, in no
// particular order.
func (e *Engine) Tokens(value interface{}) []string {
	seen := make(map[string]bool)
	e.collectTokens(value, seen)

	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	return result
}

func (e *Engine) collectTokens(value interface{}, seen map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, match := range e.tokenPattern.FindAllStringSubmatch(v, -1) {
			seen[match[1]] = true
		}
	case map[string]interface{}:
		for _, val := range v {
			e.collectTokens(val, seen)
		}
	case []interface{}:
		for _, val := range v {
			e.collectTokens(val, seen)
		}
	}
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	case float64:
		// YAML and JSON decode numbers as float64; render integral values
		// without a trailing fraction.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
