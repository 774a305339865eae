package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Validate(t *testing.T) {
	schema := MustCompile(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "maxLength": 5},
		},
		"required":             []interface{}{"name"},
		"additionalProperties": false,
	})

	tests := []struct {
		name   string
		doc    map[string]interface{}
		valid  bool
		fields []string
	}{
		{"valid", map[string]interface{}{"name": "abc"}, true, nil},
		{"missing required", map[string]interface{}{}, false, []string{"name"}},
		{"too long", map[string]interface{}{"name": "abcdefgh"}, false, []string{"name"}},
		{"extra field", map[string]interface{}{"name": "a", "colour": "red"}, false, []string{"colour"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := schema.Validate(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			for _, f := range tt.fields {
				assert.True(t, res.HasErrors(f), "expected error on %s, got %v", f, res.GetErrorMessages())
			}
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": "nonsense"})
	assert.Error(t, err)
}
