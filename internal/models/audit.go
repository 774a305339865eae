// internal/models/audit.go
package models

import (
	"encoding/json"
	"time"
)

// AuditInstance is one conducted audit together with the template facts the
// FRA engine needs to validate it.
type AuditInstance struct {
	ID               string     `json:"id"`
	TemplateID       string     `json:"templateId"`
	TemplateName     string     `json:"templateName,omitempty"`
	TemplateCategory string     `json:"templateCategory"`
	StoreID          string     `json:"storeId,omitempty"`
	StoreName        string     `json:"storeName,omitempty"`
	StoreAddress     string     `json:"storeAddress,omitempty"`
	Status           string     `json:"status"`
	ConductedBy      string     `json:"conductedBy,omitempty"`
	ConductedAt      *time.Time `json:"conductedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// AuditResponse is the answer to one question of an instance. Value and
// Payload may both be empty; an unanswered question simply has no row.
type AuditResponse struct {
	InstanceID   string          `json:"instanceId"`
	QuestionID   string          `json:"questionId"`
	SemanticTag  string          `json:"semanticTag,omitempty"`
	QuestionText string          `json:"questionText,omitempty"`
	OrderIndex   int             `json:"orderIndex"`
	Value        *string         `json:"value,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// HasAnswer reports whether the response carries a primitive value or a
// structured payload.
func (r AuditResponse) HasAnswer() bool {
	if r.Value != nil && *r.Value != "" {
		return true
	}
	return len(r.Payload) > 0 && string(r.Payload) != "null"
}

// AuditQuestion is the minimal question shape used to pick the overlay anchor.
type AuditQuestion struct {
	ID          string `json:"id"`
	TemplateID  string `json:"templateId"`
	SemanticTag string `json:"semanticTag,omitempty"`
	OrderIndex  int    `json:"orderIndex"`
}
