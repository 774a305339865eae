package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionMap_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "question-map.json")
	qm := &QuestionMap{
		Version:  "1.0.0",
		Category: "fire_risk_assessment",
		Bindings: []Binding{
			{QuestionID: "q-2", Field: "floorArea"},
			{QuestionID: "q-1", Field: "premisesName"},
		},
	}
	require.NoError(t, SaveQuestionMap(path, qm))

	loaded, err := LoadQuestionMap(path)
	require.NoError(t, err)
	require.Len(t, loaded.Bindings, 2)
	assert.Equal(t, "q-1", loaded.Bindings[0].QuestionID)
	assert.Equal(t, map[string]string{"q-1": "premisesName", "q-2": "floorArea"}, loaded.Lookup())
}

func TestQuestionMap_Validate(t *testing.T) {
	qm := &QuestionMap{Bindings: []Binding{
		{QuestionID: "q-1", Field: "premisesName"},
		{QuestionID: "q-1", Field: "address"},
		{QuestionID: "", Field: "address"},
		{QuestionID: "q-3", Field: "colourOfDoor"},
	}}
	known := func(f string) bool { return f == "premisesName" || f == "address" }

	errs := qm.Validate(known)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), "duplicate")
	assert.Contains(t, errs[1].Error(), "empty")
	assert.Contains(t, errs[2].Error(), "colourOfDoor")
}

func TestQuestionMap_Upsert(t *testing.T) {
	qm := &QuestionMap{}
	qm.Upsert(Binding{QuestionID: "q-1", Field: "address"})
	qm.Upsert(Binding{QuestionID: "q-1", Field: "premisesName"})
	require.Len(t, qm.Bindings, 1)
	assert.Equal(t, "premisesName", qm.Bindings[0].Field)

	var nilMap *QuestionMap
	assert.Empty(t, nilMap.Lookup())
}
