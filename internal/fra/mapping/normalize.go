package mapping

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"fra-engine/internal/models"
)

// tagKey folds a field key, alias or declared semantic tag to lowercase
// alphanumerics so "floor_area", "Floor Area" and "floorArea" compare equal.
func tagKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// answer is a response reduced to the shapes the normalizers understand.
type answer struct {
	text    string
	items   []string
	isArray bool
	flag    *bool
	comment string
	payload interface{}
}

func readAnswer(r models.AuditResponse) answer {
	var a answer
	if len(r.Payload) > 0 {
		var v interface{}
		if err := json.Unmarshal(r.Payload, &v); err == nil {
			a.payload = v
			a.absorb(v)
		}
	}
	if r.Value != nil {
		if s := strings.TrimSpace(*r.Value); s != "" {
			// Value wins over the payload for booleans too.
			a.text = s
			a.flag = nil
		}
	}
	return a
}

func (a *answer) absorb(v interface{}) {
	switch t := v.(type) {
	case string:
		a.text = strings.TrimSpace(t)
	case bool:
		b := t
		a.flag = &b
		a.text = strconv.FormatBool(t)
	case float64:
		a.text = strconv.FormatFloat(t, 'f', -1, 64)
	case []interface{}:
		a.isArray = true
		for _, item := range t {
			if s := scalarText(item); s != "" {
				a.items = append(a.items, s)
			}
		}
		a.text = strings.Join(a.items, "\n")
	case map[string]interface{}:
		for _, k := range []string{"comment", "comments", "notes"} {
			if c, ok := t[k].(string); ok && strings.TrimSpace(c) != "" {
				a.comment = strings.TrimSpace(c)
				break
			}
		}
		for _, k := range []string{"value", "answer", "selected", "text"} {
			if inner, ok := t[k]; ok && inner != nil {
				a.absorb(inner)
				return
			}
		}
	}
}

func scalarText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]interface{}:
		for _, k := range []string{"value", "label", "text", "name"} {
			if s := scalarText(t[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

// parseBool accepts yes, y and true (any case) as the leading word; any other
// non-empty answer is false. ok is false for an empty answer.
func parseBool(a answer) (value bool, ok bool) {
	if a.flag != nil {
		return *a.flag, true
	}
	if a.text == "" {
		return false, false
	}
	words := strings.FieldsFunc(strings.ToLower(a.text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return false, true
	}
	switch words[0] {
	case "yes", "y", "true":
		return true, true
	}
	return false, true
}

// boolDetail is the free text accompanying a yes/no answer, if any.
func boolDetail(a answer) string {
	if a.comment != "" {
		return a.comment
	}
	switch strings.ToLower(a.text) {
	case "", "yes", "y", "true", "no", "n", "false":
		return ""
	}
	return a.text
}

// splitList splits on newlines, semicolons and commas. JSON arrays are taken
// item by item without further splitting.
func splitList(a answer) []string {
	if a.isArray {
		return a.items
	}
	if a.text == "" {
		return nil
	}
	parts := strings.FieldsFunc(a.text, func(r rune) bool {
		return r == '\n' || r == ';' || r == ','
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// appendUnique appends items not already present (case-insensitive), keeping
// first-occurrence order.
func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(items))
	for _, s := range dst {
		seen[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

var likelihoodSynonyms = map[string]models.Likelihood{
	"low": models.LikelihoodLow, "l": models.LikelihoodLow, "unlikely": models.LikelihoodLow, "remote": models.LikelihoodLow,
	"medium": models.LikelihoodMedium, "med": models.LikelihoodMedium, "m": models.LikelihoodMedium,
	"possible": models.LikelihoodMedium, "normal": models.LikelihoodMedium,
	"high": models.LikelihoodHigh, "h": models.LikelihoodHigh, "likely": models.LikelihoodHigh, "probable": models.LikelihoodHigh,
}

var consequenceSynonyms = map[string]models.Consequence{
	"slight": models.ConsequenceSlight, "minor": models.ConsequenceSlight, "low": models.ConsequenceSlight,
	"moderate": models.ConsequenceModerate, "medium": models.ConsequenceModerate, "m": models.ConsequenceModerate,
	"extreme": models.ConsequenceExtreme, "severe": models.ConsequenceExtreme, "major": models.ConsequenceExtreme,
	"high": models.ConsequenceExtreme,
}

func leadingWord(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

func parseLikelihood(a answer) *models.Likelihood {
	if l, ok := likelihoodSynonyms[strings.ToLower(a.text)]; ok {
		return &l
	}
	if l, ok := likelihoodSynonyms[leadingWord(a.text)]; ok {
		return &l
	}
	return nil
}

func parseConsequence(a answer) *models.Consequence {
	if c, ok := consequenceSynonyms[strings.ToLower(a.text)]; ok {
		return &c
	}
	if c, ok := consequenceSynonyms[leadingWord(a.text)]; ok {
		return &c
	}
	return nil
}

// parseActionPlan reads either a JSON array (objects or strings) or
// "recommendation | priority | due" lines.
func parseActionPlan(a answer) []models.ActionItem {
	var items []models.ActionItem
	if arr, ok := unwrapArray(a.payload); ok {
		for _, el := range arr {
			switch t := el.(type) {
			case string:
				if s := strings.TrimSpace(t); s != "" {
					items = append(items, models.ActionItem{Recommendation: s})
				}
			case map[string]interface{}:
				rec := firstString(t, "recommendation", "action", "text", "description")
				if rec == "" {
					continue
				}
				item := models.ActionItem{
					Recommendation: rec,
					Priority:       firstString(t, "priority", "risk"),
				}
				if due := firstString(t, "dueDate", "due", "deadline", "timescale"); due != "" {
					item.DueDate = &due
				}
				items = append(items, item)
			}
		}
		return items
	}

	for _, line := range strings.Split(a.text, "\n") {
		cols := strings.Split(line, "|")
		rec := strings.TrimSpace(cols[0])
		if rec == "" {
			continue
		}
		item := models.ActionItem{Recommendation: rec}
		if len(cols) > 1 {
			item.Priority = strings.TrimSpace(cols[1])
		}
		if len(cols) > 2 {
			if due := strings.TrimSpace(cols[2]); due != "" {
				item.DueDate = &due
			}
		}
		items = append(items, item)
	}
	return items
}

func unwrapArray(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case map[string]interface{}:
		for _, k := range []string{"items", "actions", "value"} {
			if arr, ok := t[k].([]interface{}); ok {
				return arr, true
			}
		}
	}
	return nil, false
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := scalarText(m[k]); s != "" {
			return s
		}
	}
	return ""
}
