package mapping

import "fra-engine/internal/models"

type fieldKind int

const (
	kindText fieldKind = iota
	kindBool
	kindNumeric
	kindList
	kindLikelihood
	kindConsequence
	kindActionPlan
)

func (k fieldKind) String() string {
	switch k {
	case kindText:
		return "text"
	case kindBool:
		return "bool"
	case kindNumeric:
		return "numeric"
	case kindList:
		return "list"
	case kindLikelihood:
		return "likelihood"
	case kindConsequence:
		return "consequence"
	case kindActionPlan:
		return "actionPlan"
	}
	return "unknown"
}

type fra = models.CanonicalFRAData

// rule binds one canonical field to its normalizer. Exactly one accessor
// matching kind is set; comment is optional and receives a payload comment.
type rule struct {
	field   string
	kind    fieldKind
	aliases []string

	text    func(d *fra) **string
	flag    func(d *fra) **bool
	number  func(d *fra) **models.Numeric
	list    func(d *fra) *[]string
	comment func(d *fra) **string
}

func text(field string, f func(d *fra) **string, aliases ...string) rule {
	return rule{field: field, kind: kindText, text: f, aliases: aliases}
}

func flag(field string, f func(d *fra) **bool, aliases ...string) rule {
	return rule{field: field, kind: kindBool, flag: f, aliases: aliases}
}

func number(field string, f func(d *fra) **models.Numeric, aliases ...string) rule {
	return rule{field: field, kind: kindNumeric, number: f, aliases: aliases}
}

func list(field string, f func(d *fra) *[]string, aliases ...string) rule {
	return rule{field: field, kind: kindList, list: f, aliases: aliases}
}

func (r rule) withComment(f func(d *fra) **string) rule {
	r.comment = f
	return r
}

// rules is the total question-semantics to field table.
var rules = []rule{
	text("premisesName", func(d *fra) **string { return &d.PremisesName }, "premises", "siteName", "storeName"),
	text("clientName", func(d *fra) **string { return &d.ClientName }, "client"),
	text("address", func(d *fra) **string { return &d.Address }, "premisesAddress", "siteAddress"),
	text("responsiblePerson", func(d *fra) **string { return &d.ResponsiblePerson }),
	text("ultimateResponsiblePerson", func(d *fra) **string { return &d.UltimateResponsiblePerson }),
	text("appointedPerson", func(d *fra) **string { return &d.AppointedPerson }, "competentPerson"),
	text("assessorName", func(d *fra) **string { return &d.AssessorName }, "assessor"),
	text("assessmentDate", func(d *fra) **string { return &d.AssessmentDate }, "dateOfAssessment"),
	text("assessmentStart", func(d *fra) **string { return &d.AssessmentStart }, "startTime"),
	text("assessmentEnd", func(d *fra) **string { return &d.AssessmentEnd }, "endTime"),
	text("buildDate", func(d *fra) **string { return &d.BuildDate }, "yearBuilt"),
	text("propertyType", func(d *fra) **string { return &d.PropertyType }, "buildingType"),
	text("description", func(d *fra) **string { return &d.Description }, "premisesDescription", "buildingDescription"),
	number("floorCount", func(d *fra) **models.Numeric { return &d.FloorCount }, "numberOfFloors", "floors"),
	number("floorArea", func(d *fra) **models.Numeric { return &d.FloorArea }).
		withComment(func(d *fra) **string { return &d.FloorAreaComment }),
	number("occupancy", func(d *fra) **models.Numeric { return &d.Occupancy }, "maxOccupancy").
		withComment(func(d *fra) **string { return &d.OccupancyComment }),
	text("operatingHours", func(d *fra) **string { return &d.OperatingHours }, "openingHours").
		withComment(func(d *fra) **string { return &d.OperatingHoursComment }),
	flag("sleepingRisk", func(d *fra) **bool { return &d.SleepingRisk }).
		withComment(func(d *fra) **string { return &d.SleepingRiskText }),

	text("internalFireDoors", func(d *fra) **string { return &d.InternalFireDoors }, "fireDoors"),
	text("historyOfFires", func(d *fra) **string { return &d.HistoryOfFires }, "fireHistory"),
	text("fireAlarmDescription", func(d *fra) **string { return &d.FireAlarmDescription }, "fireAlarm"),
	text("fireAlarmPanelLocation", func(d *fra) **string { return &d.FireAlarmPanelLocation }, "fireAlarmPanel", "panelLocation"),
	text("emergencyLighting", func(d *fra) **string { return &d.EmergencyLighting }),
	text("fireExtinguishers", func(d *fra) **string { return &d.FireExtinguishers }, "extinguishers"),
	flag("hasSprinklers", func(d *fra) **bool { return &d.HasSprinklers }, "sprinklers", "sprinklerSystem"),
	text("sprinklerDescription", func(d *fra) **string { return &d.SprinklerDescription }),
	text("sprinklerClearance", func(d *fra) **string { return &d.SprinklerClearance }),

	number("travelDistanceSingle", func(d *fra) **models.Numeric { return &d.TravelDistanceSingle }),
	number("travelDistanceMultiple", func(d *fra) **models.Numeric { return &d.TravelDistanceMultiple }),
	text("escapeRoutes", func(d *fra) **string { return &d.EscapeRoutes }, "meansOfEscape"),
	text("compartmentation", func(d *fra) **string { return &d.Compartmentation }, "fireResistance"),

	list("ignitionSources", func(d *fra) *[]string { return &d.IgnitionSources }),
	list("fuelSources", func(d *fra) *[]string { return &d.FuelSources }),
	list("oxygenSources", func(d *fra) *[]string { return &d.OxygenSources }),
	list("peopleAtRisk", func(d *fra) *[]string { return &d.PeopleAtRisk }),
	list("significantFindings", func(d *fra) *[]string { return &d.SignificantFindings }, "findings"),
	list("recommendedControls", func(d *fra) *[]string { return &d.RecommendedControls }, "controls"),

	{field: "likelihood", kind: kindLikelihood, aliases: []string{"fireLikelihood"}},
	{field: "consequence", kind: kindConsequence, aliases: []string{"severity", "fireConsequence"}},
	text("riskSummary", func(d *fra) **string { return &d.RiskSummary }, "riskJustification"),

	{field: "actionPlan", kind: kindActionPlan, aliases: []string{"actions"}},
}

// KnownField reports whether field is a canonical field key.
func KnownField(field string) bool {
	_, ok := byField[field]
	return ok
}

// Fields lists the canonical field keys in table order.
func Fields() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.field
	}
	return out
}

var (
	byField = map[string]*rule{}
	byTag   = map[string]*rule{}
)

func init() {
	for i := range rules {
		r := &rules[i]
		byField[r.field] = r
		byTag[tagKey(r.field)] = r
		for _, a := range r.aliases {
			byTag[tagKey(a)] = r
		}
	}
}
