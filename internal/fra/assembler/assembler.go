package assembler

import (
	"strconv"
	"strings"
	"time"

	"fra-engine/internal/fra/sections"
	"fra-engine/internal/models"
)

type contentFunc func(d *models.CanonicalFRAData, assets models.ResolvedAssets, stamp BuildStamp) []Block

var content = map[string]contentFunc{
	sections.Cover:               coverContent,
	sections.Premises:            premisesContent,
	sections.ResponsiblePersons:  responsiblePersonsContent,
	sections.FireSafety:          fireSafetyContent,
	sections.Sprinklers:          sprinklerContent,
	sections.MeansOfEscape:       meansOfEscapeContent,
	sections.FireResistance:      fireResistanceContent,
	sections.RiskAnalysis:        riskAnalysisContent,
	sections.RiskRating:          riskRatingContent,
	sections.SignificantFindings: significantFindingsContent,
	sections.ActionPlan:          actionPlanContent,
	sections.Photos:              photosContent,
}

// Build emits the sections selected by the registry for d, in registry
// order, each with its content blocks.
func Build(d *models.CanonicalFRAData, assets models.ResolvedAssets, stamp BuildStamp) []Section {
	if d == nil {
		d = models.NewCanonicalFRAData()
	}
	defs := sections.Sections(d)
	out := make([]Section, 0, len(defs))
	for _, def := range defs {
		s := Section{ID: def.ID, Title: def.Title, PageBreakAfter: def.PageBreakAfter}
		if fn, ok := content[def.ID]; ok {
			s.Blocks = fn(d, assets, stamp)
		}
		if s.Blocks == nil {
			s.Blocks = []Block{}
		}
		out = append(out, s)
	}
	return out
}

func coverContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, stamp BuildStamp) []Block {
	return []Block{
		field("Premises", d.PremisesName),
		field("Client", d.ClientName),
		field("Address", d.Address),
		field("Assessor", d.AssessorName),
		field("Date of assessment", d.AssessmentDate),
		fieldText("Assessment window", window(d.AssessmentStart, d.AssessmentEnd)),
		paragraph("This assessment has been carried out under the Regulatory Reform (Fire Safety) Order 2005. " +
			"It records the fire hazards identified at the premises, the people at risk, the existing " +
			"fire precautions and the actions required to reduce the risk to life to an acceptable level."),
		{Kind: BlockStamp, Text: stamp.String()},
	}
}

func premisesContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	blocks := []Block{
		field("Property type", d.PropertyType),
		field("Description", d.Description),
		field("Build date", d.BuildDate),
		fieldText("Number of floors", d.FloorCount.String()),
		fieldText("Floor area", withComment(d.FloorArea.String(), d.FloorAreaComment)),
		fieldText("Maximum occupancy", withComment(d.Occupancy.String(), d.OccupancyComment)),
		fieldText("Operating hours", withComment(deref(d.OperatingHours), d.OperatingHoursComment)),
		fieldText("Sleeping risk", withComment(yesNo(d.SleepingRisk), d.SleepingRiskText)),
	}
	if d.CustomDataUpdatedAt != nil {
		blocks = append(blocks, paragraph("Premises details amended by reviewer on "+
			d.CustomDataUpdatedAt.UTC().Format(time.RFC3339)+"."))
	}
	return blocks
}

func responsiblePersonsContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	return []Block{
		field("Responsible person", d.ResponsiblePerson),
		field("Ultimate responsible person", d.UltimateResponsiblePerson),
		field("Appointed person", d.AppointedPerson),
		field("Fire risk assessor", d.AssessorName),
	}
}

func fireSafetyContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	return []Block{
		field("Fire alarm system", d.FireAlarmDescription),
		field("Fire alarm panel location", d.FireAlarmPanelLocation),
		field("Emergency lighting", d.EmergencyLighting),
		field("Fire extinguishers", d.FireExtinguishers),
		field("Internal fire doors", d.InternalFireDoors),
		field("History of fires", d.HistoryOfFires),
		fieldText("Sprinkler system installed", yesNo(d.HasSprinklers)),
	}
}

func sprinklerContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	return []Block{
		field("Sprinkler system", d.SprinklerDescription),
		field("Clearance below sprinkler heads", d.SprinklerClearance),
	}
}

func meansOfEscapeContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	return []Block{
		field("Escape routes", d.EscapeRoutes),
		table("Travel distances",
			[]string{"Direction of travel", "Recorded distance", "Guidance maximum"},
			[]int{3, 2, 2},
			[][]string{
				{"Single direction", orNotRecorded(d.TravelDistanceSingle.String()), "18 m"},
				{"More than one direction", orNotRecorded(d.TravelDistanceMultiple.String()), "45 m"},
			}),
	}
}

func fireResistanceContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	return []Block{
		table("Fire resistance",
			[]string{"Element", "Observation"},
			[]int{2, 5},
			[][]string{
				{"Internal fire doors", orNotRecorded(deref(d.InternalFireDoors))},
				{"Compartmentation", orNotRecorded(deref(d.Compartmentation))},
				{"Protected escape routes", orNotRecorded(deref(d.EscapeRoutes))},
			}),
	}
}

func riskAnalysisContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	return []Block{
		list("Sources of ignition", d.IgnitionSources),
		list("Sources of fuel", d.FuelSources),
		list("Sources of oxygen", d.OxygenSources),
		list("People at risk", d.PeopleAtRisk),
	}
}

func riskRatingContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	level := ""
	if l := d.RiskLevel(); l != nil {
		level = title(string(*l))
	}
	likelihood, consequence := "", ""
	if d.Likelihood != nil {
		likelihood = title(string(*d.Likelihood))
	}
	if d.Consequence != nil {
		consequence = title(string(*d.Consequence))
	}

	header := []string{"Likelihood / Consequence"}
	for _, c := range models.Consequences {
		header = append(header, title(string(c)))
	}
	rows := make([][]string, 0, len(models.Likelihoods))
	for _, l := range models.Likelihoods {
		row := []string{title(string(l))}
		for _, c := range models.Consequences {
			cell, _ := models.RiskMatrix(l, c)
			text := title(string(cell))
			if d.Likelihood != nil && d.Consequence != nil && *d.Likelihood == l && *d.Consequence == c {
				text += " (assessed)"
			}
			row = append(row, text)
		}
		rows = append(rows, row)
	}

	return []Block{
		fieldText("Likelihood of fire", likelihood),
		fieldText("Potential consequence", consequence),
		fieldText("Overall risk level", level),
		field("Summary", d.RiskSummary),
		table("Risk matrix", header, []int{3, 2, 2, 2}, rows),
	}
}

func significantFindingsContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	return []Block{
		list("Significant findings", d.SignificantFindings),
		list("Recommended controls", d.RecommendedControls),
	}
}

func actionPlanContent(d *models.CanonicalFRAData, _ models.ResolvedAssets, _ BuildStamp) []Block {
	rows := make([][]string, 0, len(d.ActionPlan))
	for i, a := range d.ActionPlan {
		rows = append(rows, []string{strconv.Itoa(i + 1), a.Recommendation, a.Priority, deref(a.DueDate)})
	}
	if len(rows) == 0 {
		rows = append(rows, []string{"", "No actions recorded", "", ""})
	}
	return []Block{
		table("Action plan", []string{"No.", "Recommendation", "Priority", "Due"}, []int{1, 6, 2, 2}, rows),
	}
}

func photosContent(_ *models.CanonicalFRAData, assets models.ResolvedAssets, _ BuildStamp) []Block {
	keys := assets.Placeholders()
	if len(keys) == 0 {
		return []Block{paragraph("No photographs recorded.")}
	}
	groups := make([]PhotoGroup, len(keys))
	for i, k := range keys {
		groups[i] = PhotoGroup{Placeholder: k, Assets: append([]models.Asset(nil), assets.Assets[k]...)}
	}
	return []Block{{Kind: BlockPhotos, Photos: groups}}
}

func window(start, end *string) string {
	s, e := deref(start), deref(end)
	switch {
	case s != "" && e != "":
		return s + " to " + e
	case s != "":
		return "From " + s
	case e != "":
		return "Until " + e
	}
	return ""
}

func withComment(value string, comment *string) string {
	c := deref(comment)
	switch {
	case value == "" && c == "":
		return ""
	case c == "":
		return value
	case value == "":
		return c
	}
	return value + " (" + c + ")"
}

func yesNo(b *bool) string {
	if b == nil {
		return ""
	}
	if *b {
		return "Yes"
	}
	return "No"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNotRecorded(s string) string {
	if s == "" {
		return notRecorded
	}
	return s
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// PlaceholderTitle turns a placeholder id such as "fire-exits" into a caption.
func PlaceholderTitle(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' || r == '.' })
	for i, w := range words {
		words[i] = title(w)
	}
	return strings.Join(words, " ")
}
