package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/models"
)

// Fixture is an exported audit: one instance with its template questions and
// responses. It backs offline rendering.
type Fixture struct {
	Instance  models.AuditInstance   `json:"instance"`
	Questions []models.AuditQuestion `json:"questions,omitempty"`
	Responses []models.AuditResponse `json:"responses"`
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.Instance.ID == "" {
		return nil, fmt.Errorf("fixture %s: instance.id is required", path)
	}
	return &f, nil
}

// MemoryStore is an in-process Store over fixtures.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]models.AuditInstance
	questions map[string][]models.AuditQuestion
	responses map[string][]models.AuditResponse
}

func NewMemoryStore(fixtures ...*Fixture) *MemoryStore {
	s := &MemoryStore{
		instances: map[string]models.AuditInstance{},
		questions: map[string][]models.AuditQuestion{},
		responses: map[string][]models.AuditResponse{},
	}
	for _, f := range fixtures {
		s.Add(f)
	}
	return s
}

// Add registers a fixture. Questions missing from the fixture are derived
// from its responses.
func (s *MemoryStore) Add(f *Fixture) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst := f.Instance
	s.instances[inst.ID] = inst

	responses := make([]models.AuditResponse, len(f.Responses))
	for i, r := range f.Responses {
		r.InstanceID = inst.ID
		responses[i] = r
	}
	s.responses[inst.ID] = responses

	questions := append([]models.AuditQuestion(nil), f.Questions...)
	if len(questions) == 0 {
		for _, r := range responses {
			questions = append(questions, models.AuditQuestion{
				ID: r.QuestionID, TemplateID: inst.TemplateID, SemanticTag: r.SemanticTag, OrderIndex: r.OrderIndex,
			})
		}
	}
	if len(questions) > 0 {
		s.questions[inst.TemplateID] = questions
	}
}

func (s *MemoryStore) GetInstance(_ context.Context, instanceID string) (*models.AuditInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInstanceNotFound, instanceID)
	}
	return &inst, nil
}

func (s *MemoryStore) ListResponses(_ context.Context, instanceID string) ([]models.AuditResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.AuditResponse(nil), s.responses[instanceID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

func (s *MemoryStore) AnchorQuestion(_ context.Context, templateID string) (*models.AuditQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs := s.questions[templateID]
	if len(qs) == 0 {
		return nil, nil
	}
	first := qs[0]
	for _, q := range qs[1:] {
		if q.OrderIndex < first.OrderIndex || (q.OrderIndex == first.OrderIndex && q.ID < first.ID) {
			first = q
		}
	}
	return &first, nil
}

// MergeOverlay mirrors the Postgres upsert: the patch is merged into the
// overlay object of the anchor row, creating the row when absent.
func (s *MemoryStore) MergeOverlay(_ context.Context, instanceID, questionID string, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.responses[instanceID]
	idx := -1
	for i, r := range rows {
		if r.QuestionID == questionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		order := 0
		for _, q := range s.questions[s.instances[instanceID].TemplateID] {
			if q.ID == questionID {
				order = q.OrderIndex
			}
		}
		rows = append(rows, models.AuditResponse{InstanceID: instanceID, QuestionID: questionID, OrderIndex: order})
		idx = len(rows) - 1
	}

	bag := map[string]interface{}{}
	if len(rows[idx].Metadata) > 0 {
		if err := json.Unmarshal(rows[idx].Metadata, &bag); err != nil {
			return fmt.Errorf("%w: decode metadata: %v", apperrors.ErrQueryFailed, err)
		}
	}
	current, _ := bag[models.OverlayMetadataKey].(map[string]interface{})
	if current == nil {
		current = map[string]interface{}{}
	}
	for k, v := range patch {
		current[k] = v
	}
	bag[models.OverlayMetadataKey] = current

	meta, err := json.Marshal(bag)
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", apperrors.ErrQueryFailed, err)
	}
	rows[idx].Metadata = meta
	s.responses[instanceID] = rows
	return nil
}
