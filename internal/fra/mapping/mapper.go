// Package mapping turns raw audit responses into CanonicalFRAData. It has no
// side effects and is safe for concurrent use.
package mapping

import (
	"sort"
	"strings"

	"fra-engine/internal/common/logger"
	"fra-engine/internal/models"
)

type Mapper struct {
	bindings map[string]string
	logger   logger.Logger
}

// NewMapper builds a mapper. bindings maps question ids to field keys and
// takes precedence over semantic tags; it may be nil.
func NewMapper(bindings map[string]string, log logger.Logger) *Mapper {
	if bindings == nil {
		bindings = map[string]string{}
	}
	return &Mapper{
		bindings: bindings,
		logger:   logger.Component(log, "fra-mapping"),
	}
}

// Map projects the responses of one instance onto the canonical schema and
// merges the overlay on top. The same input always yields the same output.
func (m *Mapper) Map(inst *models.AuditInstance, responses []models.AuditResponse, overlay *models.CustomDataOverlay) *models.CanonicalFRAData {
	d := models.NewCanonicalFRAData()

	ordered := make([]models.AuditResponse, len(responses))
	copy(ordered, responses)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].OrderIndex != ordered[j].OrderIndex {
			return ordered[i].OrderIndex < ordered[j].OrderIndex
		}
		return ordered[i].QuestionID < ordered[j].QuestionID
	})

	unmapped := 0
	for _, resp := range ordered {
		r := m.ruleFor(resp)
		if r == nil {
			if resp.HasAnswer() {
				unmapped++
			}
			continue
		}
		apply(d, r, readAnswer(resp))
	}

	if inst != nil {
		applyInstanceFallbacks(d, inst)
	}

	if !d.SprinklersPresent() {
		d.SprinklerDescription = nil
		d.SprinklerClearance = nil
	}

	ApplyOverlay(d, overlay)

	if unmapped > 0 && inst != nil {
		m.logger.Debug("responses without a canonical field", map[string]interface{}{
			"instanceId": inst.ID,
			"count":      unmapped,
		})
	}
	return d
}

func (m *Mapper) ruleFor(resp models.AuditResponse) *rule {
	if field, ok := m.bindings[resp.QuestionID]; ok {
		if r, ok := byField[field]; ok {
			return r
		}
	}
	if resp.SemanticTag == "" {
		return nil
	}
	return byTag[tagKey(resp.SemanticTag)]
}

// apply writes one answer into d. Scalars keep the first non-empty value in
// question order; lists and the action plan accumulate.
func apply(d *models.CanonicalFRAData, r *rule, a answer) {
	switch r.kind {
	case kindText:
		if p := r.text(d); *p == nil && a.text != "" {
			s := a.text
			*p = &s
		}
	case kindNumeric:
		if p := r.number(d); *p == nil {
			*p = models.ParseNumeric(a.text)
		}
	case kindBool:
		if p := r.flag(d); *p == nil {
			if v, ok := parseBool(a); ok {
				*p = &v
			}
		}
	case kindList:
		p := r.list(d)
		*p = appendUnique(*p, splitList(a)...)
	case kindLikelihood:
		if d.Likelihood == nil {
			d.Likelihood = parseLikelihood(a)
		}
	case kindConsequence:
		if d.Consequence == nil {
			d.Consequence = parseConsequence(a)
		}
	case kindActionPlan:
		d.ActionPlan = append(d.ActionPlan, parseActionPlan(a)...)
	}

	if r.comment != nil {
		detail := a.comment
		if r.kind == kindBool {
			detail = boolDetail(a)
		}
		if p := r.comment(d); *p == nil && detail != "" {
			*p = &detail
		}
	}
}

func applyInstanceFallbacks(d *models.CanonicalFRAData, inst *models.AuditInstance) {
	if d.PremisesName == nil && strings.TrimSpace(inst.StoreName) != "" {
		s := strings.TrimSpace(inst.StoreName)
		d.PremisesName = &s
	}
	if d.Address == nil && strings.TrimSpace(inst.StoreAddress) != "" {
		s := strings.TrimSpace(inst.StoreAddress)
		d.Address = &s
	}
	if d.AssessmentDate == nil && inst.ConductedAt != nil {
		s := inst.ConductedAt.UTC().Format("2006-01-02")
		d.AssessmentDate = &s
	}
}

// ApplyOverlay lets every set overlay field win over the derived value.
func ApplyOverlay(d *models.CanonicalFRAData, o *models.CustomDataOverlay) {
	if d == nil || o == nil {
		return
	}
	if v := trimmed(o.FloorArea); v != "" {
		d.FloorArea = models.ParseNumeric(v)
	}
	if v := trimmed(o.Occupancy); v != "" {
		d.Occupancy = models.ParseNumeric(v)
	}
	if v := trimmed(o.OperatingHours); v != "" {
		d.OperatingHours = &v
	}
	if v := trimmed(o.BuildDate); v != "" {
		d.BuildDate = &v
	}
	if o.LastUpdated != nil {
		t := *o.LastUpdated
		d.CustomDataUpdatedAt = &t
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
