package generatedocument

import (
	"strings"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/validation"
)

var inputSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []string{"instanceId"},
	"properties": map[string]interface{}{
		"instanceId": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
			"maxLength": 255,
		},
		"notifyEmail": map[string]interface{}{
			"type":   "string",
			"format": "email",
		},
		"archive": map[string]interface{}{
			"type": "boolean",
		},
	},
})

// validateInput checks raw job variables. Other process variables are allowed.
func validateInput(vars map[string]interface{}) error {
	switch id := vars["instanceId"].(type) {
	case nil:
		return apperrors.NewMissingParameterError("instanceId")
	case string:
		if strings.TrimSpace(id) == "" {
			return apperrors.NewMissingParameterError("instanceId")
		}
	}
	result, err := inputSchema.Validate(vars)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return apperrors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}
