// pkg/registry/schema.go
package registry

// QuestionMap binds audit question ids to canonical FRA field keys. It is
// the first lookup the mapping engine performs; semantic tags are the
// fallback.
type QuestionMap struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Category    string    `json:"category"`
	Bindings    []Binding `json:"bindings"`
}

type Binding struct {
	QuestionID string `json:"questionId"`
	Field      string `json:"field"`
	TemplateID string `json:"templateId,omitempty"`
	Note       string `json:"note,omitempty"`
}
