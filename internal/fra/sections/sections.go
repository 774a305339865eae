// Package sections holds the ordered registry of FRA document sections. Both
// renditions iterate it; reordering the document is an edit to Registry.
package sections

import "fra-engine/internal/models"

const (
	Cover               = "cover"
	Premises            = "premises"
	ResponsiblePersons  = "responsible-persons"
	FireSafety          = "fire-safety"
	Sprinklers          = "sprinklers"
	MeansOfEscape       = "means-of-escape"
	FireResistance      = "fire-resistance"
	RiskAnalysis        = "risk-analysis"
	RiskRating          = "risk-rating"
	SignificantFindings = "significant-findings"
	ActionPlan          = "action-plan"
	Photos              = "photos"
)

// Def declares one section. A nil Condition always emits.
type Def struct {
	ID             string                                `json:"id"`
	Title          string                                `json:"title"`
	PageBreakAfter bool                                  `json:"pageBreakAfter"`
	Condition      func(d *models.CanonicalFRAData) bool `json:"-"`
}

// Registry is the static section order.
var Registry = []Def{
	{ID: Cover, Title: "Fire Risk Assessment", PageBreakAfter: true},
	{ID: Premises, Title: "Premises Information", PageBreakAfter: true},
	{ID: ResponsiblePersons, Title: "Responsible Persons", PageBreakAfter: true},
	{ID: FireSafety, Title: "Fire Safety Systems", PageBreakAfter: true},
	{ID: Sprinklers, Title: "Sprinkler System", PageBreakAfter: true, Condition: hasSprinklers},
	{ID: MeansOfEscape, Title: "Means of Escape", PageBreakAfter: true},
	{ID: FireResistance, Title: "Fire Resistance and Compartmentation", PageBreakAfter: true},
	{ID: RiskAnalysis, Title: "Fire Hazards and People at Risk", PageBreakAfter: true},
	{ID: RiskRating, Title: "Risk Rating", PageBreakAfter: true},
	{ID: SignificantFindings, Title: "Significant Findings", PageBreakAfter: true},
	{ID: ActionPlan, Title: "Action Plan", PageBreakAfter: true},
	{ID: Photos, Title: "Photographic Evidence", PageBreakAfter: false},
}

func hasSprinklers(d *models.CanonicalFRAData) bool {
	return d.SprinklersPresent()
}

// Sections returns the registry in order with sections whose condition is
// false for d removed.
func Sections(d *models.CanonicalFRAData) []Def {
	return filter(Registry, d)
}

func filter(registry []Def, d *models.CanonicalFRAData) []Def {
	out := make([]Def, 0, len(registry))
	for _, def := range registry {
		if def.Condition != nil && !def.Condition(d) {
			continue
		}
		out = append(out, def)
	}
	return out
}

// IDs returns the ids of defs in order.
func IDs(defs []Def) []string {
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	return ids
}
