// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

func LoadQuestionMap(path string) (*QuestionMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var qm QuestionMap
	if err := json.Unmarshal(data, &qm); err != nil {
		return nil, fmt.Errorf("parse question map %s: %w", path, err)
	}
	return &qm, nil
}

// SaveQuestionMap writes the map back with bindings sorted by question id so
// diffs stay readable.
func SaveQuestionMap(path string, qm *QuestionMap) error {
	sort.SliceStable(qm.Bindings, func(i, j int) bool {
		return qm.Bindings[i].QuestionID < qm.Bindings[j].QuestionID
	})
	data, err := json.MarshalIndent(qm, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Lookup flattens the bindings into questionId -> field.
func (qm *QuestionMap) Lookup() map[string]string {
	if qm == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(qm.Bindings))
	for _, b := range qm.Bindings {
		out[b.QuestionID] = b.Field
	}
	return out
}

// Validate reports duplicate question ids and bindings to fields the caller
// does not know about.
func (qm *QuestionMap) Validate(knownField func(string) bool) []error {
	var errs []error
	seen := make(map[string]bool, len(qm.Bindings))
	for i, b := range qm.Bindings {
		if b.QuestionID == "" {
			errs = append(errs, fmt.Errorf("binding %d: questionId is empty", i))
			continue
		}
		if seen[b.QuestionID] {
			errs = append(errs, fmt.Errorf("binding %d: duplicate questionId %q", i, b.QuestionID))
		}
		seen[b.QuestionID] = true
		if knownField != nil && !knownField(b.Field) {
			errs = append(errs, fmt.Errorf("binding %d: unknown field %q for question %q", i, b.Field, b.QuestionID))
		}
	}
	return errs
}

// Upsert adds or replaces the binding for b.QuestionID.
func (qm *QuestionMap) Upsert(b Binding) {
	for i := range qm.Bindings {
		if qm.Bindings[i].QuestionID == b.QuestionID {
			qm.Bindings[i] = b
			return
		}
	}
	qm.Bindings = append(qm.Bindings, b)
}
