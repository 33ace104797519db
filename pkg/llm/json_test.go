package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		object  string
		wantErr bool
	}{
		{"plain", `{"intent":"other"}`, `{"intent":"other"}`, false},
		{"fenced", "```json\n{\"a\":{\"b\":1}}\n```", `{"a":{"b":1}}`, false},
		{"chatter", `Sure! Here it is: {"x":1} hope that helps`, `{"x":1}`, false},
		{"missing", "no json here", "", true},
		{"reversed", "} {", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.object, got)
		})
	}

	arr, err := ExtractJSONArray("Controls:\n[{\"title\":\"a\"}]")
	assert.NoError(t, err)
	assert.Equal(t, `[{"title":"a"}]`, arr)
}

func TestApplyOptions(t *testing.T) {
	o := ApplyOptions(WithTemperature(0), WithMaxTokens(256), WithModel("gpt-4o"))
	assert.Equal(t, 0.0, o.Temperature)
	assert.Equal(t, 256, o.MaxTokens)
	assert.Equal(t, "gpt-4o", o.Model)

	assert.Equal(t, 0.7, ApplyOptions().Temperature)
}
