package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var querySchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"query"},
	"properties": map[string]interface{}{
		"query": map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 2000},
		"context": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"domainHint": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{"deliveries", "freight", "orders", "shipments", "finance", "general"},
				},
			},
		},
	},
}

func TestValidator_ValidateJSON(t *testing.T) {
	v, err := Compile(querySchema)
	require.NoError(t, err)

	tests := []struct {
		name      string
		doc       string
		valid     bool
		errorOn   string
		errorCode string
	}{
		{"valid", `{"query":"entregas atrasadas hoje"}`, true, "", ""},
		{"valid with context", `{"query":"frete","context":{"domainHint":"freight"}}`, true, "", ""},
		{"missing query", `{"context":{}}`, false, "query", "REQUIRED"},
		{"empty query", `{"query":""}`, false, "query", "STRING_GTE"},
		{"wrong type", `{"query":42}`, false, "query", "INVALID_TYPE"},
		{"bad enum", `{"query":"x","context":{"domainHint":"hr"}}`, false, "context.domainHint", "ENUM"},
		{"malformed", `{"query":`, false, "(root)", "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateJSON([]byte(tt.doc))
			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Empty(t, res.Errors)
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.True(t, res.HasErrors(tt.errorOn), res.Summary())
			assert.Equal(t, tt.errorCode, res.Errors[0].Code)
		})
	}
}

func TestValidateInput(t *testing.T) {
	res, err := ValidateInput(map[string]interface{}{"query": "pedidos"}, querySchema)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = ValidateInput(map[string]interface{}{}, querySchema)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"query: query is required"}, res.GetErrorMessages())
}

func TestValidateActivityNaming(t *testing.T) {
	assert.NoError(t, ValidateActivityNaming("nlq.query.analyze"))
	assert.Error(t, ValidateActivityNaming("nlp-analyze-query"))
	assert.Error(t, ValidateActivityNaming("nlq.query"))
}
