package farmlogix

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirementUnmarshalThreshold(t *testing.T) {
	var req Requirement
	require.NoError(t, json.Unmarshal([]byte(`25`), &req))
	assert.Equal(t, RequirementKindThreshold, req.Kind)
	assert.Equal(t, int64(25), req.Threshold)
}

func TestRequirementUnmarshalFlag(t *testing.T) {
	var req Requirement
	require.NoError(t, json.Unmarshal([]byte(`true`), &req))
	assert.Equal(t, RequirementKindFlag, req.Kind)
}

func TestRequirementUnmarshalAllOf(t *testing.T) {
	var req Requirement
	require.NoError(t, json.Unmarshal([]byte(`["carrot","potato","pumpkin"]`), &req))
	assert.Equal(t, RequirementKindAllOf, req.Kind)
	assert.Equal(t, []string{"carrot", "potato", "pumpkin"}, req.Members)
}

func TestRequirementUnmarshalRejectsInvalidForms(t *testing.T) {
	cases := map[string]string{
		"false flag":         `false`,
		"zero threshold":     `0`,
		"negative threshold": `-5`,
		"fractional":         `2.5`,
		"empty member list":  `[]`,
		"mixed member list":  `["carrot", 3]`,
		"string":             `"carrot"`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			var req Requirement
			assert.Error(t, json.Unmarshal([]byte(payload), &req))
		})
	}
}

func TestRequirementMarshalRoundTrip(t *testing.T) {
	var set RequirementSet
	source := `{"crops_harvested":50,"tutorial_done":true,"crop_types":["carrot","potato"]}`
	require.NoError(t, json.Unmarshal([]byte(source), &set))

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var again RequirementSet
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, set, again)
}

func TestEvaluateThresholdProgress(t *testing.T) {
	requirements := RequirementSet{
		"crops_harvested": {Kind: RequirementKindThreshold, Threshold: 100},
	}
	snapshot := &ProgressSnapshot{Counters: map[string]int64{"crops_harvested": 99}}

	result := Evaluate(requirements, snapshot)
	assert.False(t, result.Satisfied)

	detail := result.Detail["crops_harvested"]
	require.NotNil(t, detail)
	assert.Equal(t, int64(99), detail.Current)
	assert.Equal(t, int64(100), detail.Required)
	assert.InDelta(t, 99.0, detail.Percent, 0.001)
	assert.False(t, detail.Satisfied)
}

func TestEvaluateThresholdPercentClampsAtHundred(t *testing.T) {
	requirements := RequirementSet{
		"crops_harvested": {Kind: RequirementKindThreshold, Threshold: 100},
	}
	snapshot := &ProgressSnapshot{Counters: map[string]int64{"crops_harvested": 250}}

	result := Evaluate(requirements, snapshot)
	assert.True(t, result.Satisfied)

	detail := result.Detail["crops_harvested"]
	assert.Equal(t, float64(100), detail.Percent)
	assert.Equal(t, int64(250), detail.Current)
}

func TestEvaluateMissingSignalReadsZero(t *testing.T) {
	requirements := RequirementSet{
		"fish_caught": {Kind: RequirementKindThreshold, Threshold: 10},
	}

	result := Evaluate(requirements, &ProgressSnapshot{})
	assert.False(t, result.Satisfied)

	detail := result.Detail["fish_caught"]
	assert.Equal(t, int64(0), detail.Current)
	assert.Equal(t, float64(0), detail.Percent)
}

func TestEvaluateFlag(t *testing.T) {
	requirements := RequirementSet{
		"tutorial_done": {Kind: RequirementKindFlag},
	}

	result := Evaluate(requirements, &ProgressSnapshot{})
	assert.False(t, result.Satisfied)
	assert.Equal(t, float64(0), result.Detail["tutorial_done"].Percent)

	result = Evaluate(requirements, &ProgressSnapshot{Flags: map[string]bool{"tutorial_done": true}})
	assert.True(t, result.Satisfied)
	assert.Equal(t, float64(100), result.Detail["tutorial_done"].Percent)
}

func TestEvaluateAllOfReportsMissingMembers(t *testing.T) {
	requirements := RequirementSet{
		"crop_types": {Kind: RequirementKindAllOf, Members: []string{"carrot", "potato", "pumpkin"}},
	}
	snapshot := &ProgressSnapshot{Sets: map[string]map[string]bool{
		"crop_types": {"carrot": true},
	}}

	result := Evaluate(requirements, snapshot)
	assert.False(t, result.Satisfied)

	detail := result.Detail["crop_types"]
	assert.Equal(t, int64(1), detail.Current)
	assert.Equal(t, int64(3), detail.Required)
	assert.ElementsMatch(t, []string{"potato", "pumpkin"}, detail.Missing)
}

func TestEvaluateAllOfSatisfied(t *testing.T) {
	requirements := RequirementSet{
		"crop_types": {Kind: RequirementKindAllOf, Members: []string{"carrot", "potato"}},
	}
	snapshot := &ProgressSnapshot{Sets: map[string]map[string]bool{
		"crop_types": {"carrot": true, "potato": true, "pumpkin": true},
	}}

	result := Evaluate(requirements, snapshot)
	assert.True(t, result.Satisfied)
	assert.Empty(t, result.Detail["crop_types"].Missing)
}

func TestEvaluateWholeSetNeedsEveryEntry(t *testing.T) {
	requirements := RequirementSet{
		"crops_harvested": {Kind: RequirementKindThreshold, Threshold: 10},
		"tutorial_done":   {Kind: RequirementKindFlag},
	}
	snapshot := &ProgressSnapshot{
		Counters: map[string]int64{"crops_harvested": 10},
	}

	result := Evaluate(requirements, snapshot)
	assert.False(t, result.Satisfied)
	assert.True(t, result.Detail["crops_harvested"].Satisfied)
	assert.False(t, result.Detail["tutorial_done"].Satisfied)
	assert.Len(t, result.Detail, 2)

	assert.False(t, Satisfied(requirements, snapshot))

	snapshot.Flags = map[string]bool{"tutorial_done": true}
	assert.True(t, Satisfied(requirements, snapshot))
}
