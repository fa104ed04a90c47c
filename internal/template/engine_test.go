package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteString(t *testing.T) {
	engine := New()
	data := map[string]interface{}{
		"x":       "hi",
		"count":   3,
		"ratio":   2.5,
		"whole":   float64(10),
		"enabled": true,
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "echo ${x}", "echo hi"},
		{"unmatched left verbatim", "echo ${x} ${y}", "echo hi ${y}"},
		{"integer", "retries=${count}", "retries=3"},
		{"float", "ratio=${ratio}", "ratio=2.5"},
		{"integral float", "n=${whole}", "n=10"},
		{"bool", "flag=${enabled}", "flag=true"},
		{"repeated token", "${x} and ${x}", "hi and hi"},
		{"no tokens", "plain text", "plain text"},
		{"malformed token untouched", "echo ${ x }", "echo ${ x }"},
		{"dollar without brace untouched", "cost is $5", "cost is $5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.SubstituteString(tt.input, data))
		})
	}
}

func TestSubstitute_Recursive(t *testing.T) {
	engine := New()
	data := map[string]interface{}{"env": "prod"}

	value := map[string]interface{}{
		"target":  "${env}",
		"nested":  map[string]interface{}{"url": "https://${env}.example.com"},
		"list":    []interface{}{"${env}", "${missing}", 42},
		"untyped": 7,
	}

	resolved := engine.Substitute(value, data).(map[string]interface{})
	assert.Equal(t, "prod", resolved["target"])
	assert.Equal(t, "https://prod.example.com", resolved["nested"].(map[string]interface{})["url"])
	assert.Equal(t, []interface{}{"prod", "${missing}", 42}, resolved["list"])
	assert.Equal(t, 7, resolved["untyped"])
}

func TestSubstituteParams_DoesNotMutateInput(t *testing.T) {
	engine := New()
	params := map[string]interface{}{"msg": "hello ${name}"}

	resolved := engine.SubstituteParams(params, map[string]interface{}{"name": "world"})

	assert.Equal(t, "hello world", resolved["msg"])
	assert.Equal(t, "hello ${name}", params["msg"])
}

func TestSubstituteParams_Nil(t *testing.T) {
	engine := New()
	assert.Nil(t, engine.SubstituteParams(nil, map[string]interface{}{}))
}

func TestTokens(t *testing.T) {
	engine := New()
	tokens := engine.Tokens(map[string]interface{}{
		"a": "${one} ${two}",
		"b": []interface{}{"${two}", "${three}"},
	})
	assert.ElementsMatch(t, []string{"one", "two", "three"}, tokens)
}
