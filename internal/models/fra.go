// internal/models/fra.go
package models

import (
	"strconv"
	"strings"
	"time"
)

// Likelihood of a fire starting.
type Likelihood string

const (
	LikelihoodLow    Likelihood = "low"
	LikelihoodMedium Likelihood = "medium"
	LikelihoodHigh   Likelihood = "high"
)

// Consequence is the severity of harm should a fire occur.
type Consequence string

const (
	ConsequenceSlight   Consequence = "slight"
	ConsequenceModerate Consequence = "moderate"
	ConsequenceExtreme  Consequence = "extreme"
)

// RiskLevel is the display-only outcome of the risk matrix.
type RiskLevel string

const (
	RiskTrivial     RiskLevel = "trivial"
	RiskTolerable   RiskLevel = "tolerable"
	RiskModerate    RiskLevel = "moderate"
	RiskSubstantial RiskLevel = "substantial"
	RiskIntolerable RiskLevel = "intolerable"
)

var Likelihoods = []Likelihood{LikelihoodLow, LikelihoodMedium, LikelihoodHigh}
var Consequences = []Consequence{ConsequenceSlight, ConsequenceModerate, ConsequenceExtreme}

var riskMatrix = map[Likelihood]map[Consequence]RiskLevel{
	LikelihoodLow: {
		ConsequenceSlight:   RiskTrivial,
		ConsequenceModerate: RiskTolerable,
		ConsequenceExtreme:  RiskModerate,
	},
	LikelihoodMedium: {
		ConsequenceSlight:   RiskTolerable,
		ConsequenceModerate: RiskModerate,
		ConsequenceExtreme:  RiskSubstantial,
	},
	LikelihoodHigh: {
		ConsequenceSlight:   RiskModerate,
		ConsequenceModerate: RiskSubstantial,
		ConsequenceExtreme:  RiskIntolerable,
	},
}

// RiskMatrix looks up the risk level for a likelihood/consequence pair. The
// second return is false when either side is unknown.
func RiskMatrix(l Likelihood, c Consequence) (RiskLevel, bool) {
	row, ok := riskMatrix[l]
	if !ok {
		return "", false
	}
	level, ok := row[c]
	return level, ok
}

// Numeric is a measured value that keeps the raw answer when it does not
// parse as a number.
type Numeric struct {
	Value *float64 `json:"value,omitempty"`
	Text  string   `json:"text"`
}

// ParseNumeric reads the leading number out of s ("80", "80 m2", "1,200").
// Text always holds the trimmed input.
func ParseNumeric(s string) *Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n := &Numeric{Text: s}
	if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		n.Value = &v
		return n
	}
	fields := strings.Fields(s)
	if len(fields) > 0 {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", ""), 64); err == nil {
			n.Value = &v
		}
	}
	return n
}

// String renders the raw text.
func (n *Numeric) String() string {
	if n == nil {
		return ""
	}
	return n.Text
}

// ActionItem is one row of the action plan.
type ActionItem struct {
	Recommendation string  `json:"recommendation"`
	Priority       string  `json:"priority,omitempty"`
	DueDate        *string `json:"dueDate,omitempty"`
}

// CanonicalFRAData is the fixed schema every audit is normalized into. Nil
// means the audit did not answer the field; list fields are never nil.
type CanonicalFRAData struct {
	// Identity and premises
	PremisesName              *string  `json:"premisesName,omitempty"`
	ClientName                *string  `json:"clientName,omitempty"`
	Address                   *string  `json:"address,omitempty"`
	ResponsiblePerson         *string  `json:"responsiblePerson,omitempty"`
	UltimateResponsiblePerson *string  `json:"ultimateResponsiblePerson,omitempty"`
	AppointedPerson           *string  `json:"appointedPerson,omitempty"`
	AssessorName              *string  `json:"assessorName,omitempty"`
	AssessmentDate            *string  `json:"assessmentDate,omitempty"`
	AssessmentStart           *string  `json:"assessmentStart,omitempty"`
	AssessmentEnd             *string  `json:"assessmentEnd,omitempty"`
	BuildDate                 *string  `json:"buildDate,omitempty"`
	PropertyType              *string  `json:"propertyType,omitempty"`
	Description               *string  `json:"description,omitempty"`
	FloorCount                *Numeric `json:"floorCount,omitempty"`
	FloorArea                 *Numeric `json:"floorArea,omitempty"`
	FloorAreaComment          *string  `json:"floorAreaComment,omitempty"`
	Occupancy                 *Numeric `json:"occupancy,omitempty"`
	OccupancyComment          *string  `json:"occupancyComment,omitempty"`
	OperatingHours            *string  `json:"operatingHours,omitempty"`
	OperatingHoursComment     *string  `json:"operatingHoursComment,omitempty"`
	SleepingRisk              *bool    `json:"sleepingRisk,omitempty"`
	SleepingRiskText          *string  `json:"sleepingRiskText,omitempty"`

	// Fire-safety systems
	InternalFireDoors      *string `json:"internalFireDoors,omitempty"`
	HistoryOfFires         *string `json:"historyOfFires,omitempty"`
	FireAlarmDescription   *string `json:"fireAlarmDescription,omitempty"`
	FireAlarmPanelLocation *string `json:"fireAlarmPanelLocation,omitempty"`
	EmergencyLighting      *string `json:"emergencyLighting,omitempty"`
	FireExtinguishers      *string `json:"fireExtinguishers,omitempty"`
	HasSprinklers          *bool   `json:"hasSprinklers,omitempty"`
	SprinklerDescription   *string `json:"sprinklerDescription,omitempty"`
	SprinklerClearance     *string `json:"sprinklerClearance,omitempty"`

	// Means of escape and fire resistance
	TravelDistanceSingle   *Numeric `json:"travelDistanceSingle,omitempty"`
	TravelDistanceMultiple *Numeric `json:"travelDistanceMultiple,omitempty"`
	EscapeRoutes           *string  `json:"escapeRoutes,omitempty"`
	Compartmentation       *string  `json:"compartmentation,omitempty"`

	// Risk analysis
	IgnitionSources     []string `json:"ignitionSources"`
	FuelSources         []string `json:"fuelSources"`
	OxygenSources       []string `json:"oxygenSources"`
	PeopleAtRisk        []string `json:"peopleAtRisk"`
	SignificantFindings []string `json:"significantFindings"`
	RecommendedControls []string `json:"recommendedControls"`

	// Risk rating
	Likelihood  *Likelihood  `json:"likelihood,omitempty"`
	Consequence *Consequence `json:"consequence,omitempty"`
	RiskSummary *string      `json:"riskSummary,omitempty"`

	ActionPlan []ActionItem `json:"actionPlan"`

	CustomDataUpdatedAt *time.Time `json:"customDataUpdatedAt,omitempty"`
}

// NewCanonicalFRAData returns an empty record with every list initialised.
func NewCanonicalFRAData() *CanonicalFRAData {
	return &CanonicalFRAData{
		IgnitionSources:     []string{},
		FuelSources:         []string{},
		OxygenSources:       []string{},
		PeopleAtRisk:        []string{},
		SignificantFindings: []string{},
		RecommendedControls: []string{},
		ActionPlan:          []ActionItem{},
	}
}

// SprinklersPresent is true only for an explicit positive answer.
func (d *CanonicalFRAData) SprinklersPresent() bool {
	return d != nil && d.HasSprinklers != nil && *d.HasSprinklers
}

// RiskLevel returns the matrix outcome when both enumerations are set.
func (d *CanonicalFRAData) RiskLevel() *RiskLevel {
	if d == nil || d.Likelihood == nil || d.Consequence == nil {
		return nil
	}
	level, ok := RiskMatrix(*d.Likelihood, *d.Consequence)
	if !ok {
		return nil
	}
	return &level
}
