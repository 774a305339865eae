// Package overlay persists reviewer overrides for the four editable FRA
// fields in the metadata bag of the template's first question.
package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/common/validation"
	"fra-engine/internal/models"
)

// Store is the subset of the response store the overlay writes through.
type Store interface {
	GetInstance(ctx context.Context, instanceID string) (*models.AuditInstance, error)
	AnchorQuestion(ctx context.Context, templateID string) (*models.AuditQuestion, error)
	MergeOverlay(ctx context.Context, instanceID, questionID string, patch map[string]interface{}) error
}

var patchSchema = validation.MustCompile(map[string]interface{}{
	"type":          "object",
	"minProperties": 1,
	"properties": map[string]interface{}{
		"floorArea":      fieldSchema,
		"occupancy":      fieldSchema,
		"operatingHours": fieldSchema,
		"buildDate":      fieldSchema,
	},
	"additionalProperties": false,
})

// null clears an override.
var fieldSchema = map[string]interface{}{
	"type":      []interface{}{"string", "null"},
	"minLength": 1,
	"maxLength": 200,
}

type Service struct {
	store    Store
	category string
	logger   logger.Logger
	now      func() time.Time
}

func NewService(store Store, category string, log logger.Logger) *Service {
	return &Service{
		store:    store,
		category: category,
		logger:   logger.Component(log, "fra-overlay"),
		now:      time.Now,
	}
}

// ValidatePatch checks the patch shape without touching storage.
func ValidatePatch(patch map[string]interface{}) error {
	if len(patch) == 0 {
		return apperrors.NewInvalidPatchError("patch must set at least one of floorArea, occupancy, operatingHours, buildDate")
	}
	res, err := patchSchema.Validate(patch)
	if err != nil {
		return apperrors.NewInvalidPatchError(err.Error())
	}
	if !res.Valid {
		return apperrors.NewInvalidPatchError(strings.Join(res.GetErrorMessages(), "; "))
	}
	return nil
}

// Upsert validates the instance and merges patch into its overlay. The
// stored lastUpdated is the persist time.
func (s *Service) Upsert(ctx context.Context, instanceID string, patch map[string]interface{}) (*models.CustomDataOverlay, error) {
	if err := ValidatePatch(patch); err != nil {
		return nil, err
	}

	inst, err := s.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst.TemplateCategory != s.category {
		return nil, apperrors.NewNotFRATemplateError(instanceID, inst.TemplateCategory)
	}

	anchor, err := s.store.AnchorQuestion(ctx, inst.TemplateID)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, apperrors.NewNoStorageTargetError(instanceID)
	}

	stamped := make(map[string]interface{}, len(patch)+1)
	for k, v := range patch {
		stamped[k] = v
	}
	updated := s.now().UTC()
	stamped["lastUpdated"] = updated.Format(time.RFC3339Nano)

	if err := s.store.MergeOverlay(ctx, instanceID, anchor.ID, stamped); err != nil {
		return nil, err
	}

	s.logger.Info("custom data updated", map[string]interface{}{
		"instanceId": instanceID,
		"questionId": anchor.ID,
		"fields":     len(patch),
	})

	out := &models.CustomDataOverlay{LastUpdated: &updated}
	for k, v := range patch {
		str, _ := v.(string)
		var p *string
		if v != nil {
			p = &str
		}
		switch k {
		case "floorArea":
			out.FloorArea = p
		case "occupancy":
			out.Occupancy = p
		case "operatingHours":
			out.OperatingHours = p
		case "buildDate":
			out.BuildDate = p
		}
	}
	return out, nil
}

// FromResponses extracts the overlay from the first response whose metadata
// bag carries one. Responses are expected in question order.
func FromResponses(responses []models.AuditResponse) (*models.CustomDataOverlay, error) {
	for _, r := range responses {
		if len(r.Metadata) == 0 {
			continue
		}
		var bag map[string]json.RawMessage
		if err := json.Unmarshal(r.Metadata, &bag); err != nil {
			continue
		}
		raw, ok := bag[models.OverlayMetadataKey]
		if !ok || string(raw) == "null" {
			continue
		}
		var o models.CustomDataOverlay
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("decode custom data on question %s: %w", r.QuestionID, err)
		}
		return &o, nil
	}
	return nil, nil
}
