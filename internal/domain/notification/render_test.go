package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		ctx      map[string]any
		want     string
	}{
		{
			name:     "simple substitution",
			template: "Hi {{first_name}}, band {{score.band}}",
			ctx:      map[string]any{"first_name": "Sam", "score": map[string]any{"band": 7}},
			want:     "Hi Sam, band 7",
		},
		{
			name:     "missing token becomes empty",
			template: "{{missing}}",
			ctx:      map[string]any{},
			want:     "",
		},
		{
			name:     "nil value becomes empty",
			template: "value: {{key}}",
			ctx:      map[string]any{"key": nil},
			want:     "value: ",
		},
		{
			name:     "whitespace inside braces tolerated",
			template: "Hi {{  first_name  }}!",
			ctx:      map[string]any{"first_name": "Sam"},
			want:     "Hi Sam!",
		},
		{
			name:     "missing path segment becomes empty",
			template: "{{score.band.sub}}",
			ctx:      map[string]any{"score": map[string]any{"band": 7}},
			want:     "",
		},
		{
			name:     "object value is JSON-stringified",
			template: "{{score}}",
			ctx:      map[string]any{"score": map[string]any{"band": 7.5}},
			want:     `{"band":7.5}`,
		},
		{
			name:     "array value is JSON-stringified",
			template: "{{tags}}",
			ctx:      map[string]any{"tags": []any{"a", "b"}},
			want:     `["a","b"]`,
		},
		{
			name:     "boolean value is stringified",
			template: "{{flag}}",
			ctx:      map[string]any{"flag": true},
			want:     "true",
		},
		{
			name:     "plain text passes through",
			template: "no tokens here",
			ctx:      map[string]any{"unused": 1},
			want:     "no tokens here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.template, tt.ctx))
		})
	}
}
