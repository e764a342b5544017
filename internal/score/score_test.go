package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func TestEvaluateDecreaseDelta(t *testing.T) {
	t.Parallel()

	criteria := []Criterion{{
		Field:    FieldTitle,
		Method:   MethodContains,
		Decrease: fp(-2),
		Items:    []Item{{Value: "manager", Effect: "decrease"}},
	}}

	res := Evaluate(Fields{Title: "Senior Manager"}, criteria, 3)
	assert.Equal(t, 1, res.Score)
	assert.False(t, res.Excluded)
	require.Len(t, res.Reasons, 1)
	assert.Equal(t, "title:manager:dec-2", res.Reasons[0])
}

func TestEvaluateIsDeterministic(t *testing.T) {
	t.Parallel()

	criteria := []Criterion{
		{
			Field:    FieldTitle,
			Method:   MethodWord,
			Increase: fp(2),
			Items: []Item{
				{Value: "kitchen", Effect: "increase"},
				{Value: "casual", Effect: "+1"},
			},
		},
		{
			Field:  FieldLocation,
			Method: MethodContains,
			Items:  []Item{{Value: "ringwood", Effect: "increase"}},
		},
	}
	fields := Fields{Title: "Casual Kitchen Hand", Location: "Ringwood VIC"}

	first := Evaluate(fields, criteria, 3)
	for range 10 {
		assert.Equal(t, first, Evaluate(fields, criteria, 3))
	}
	assert.Equal(t, 7, first.Score)
}

func TestEvaluateNumericDelta(t *testing.T) {
	t.Parallel()

	criteria := []Criterion{{
		Field:  FieldTitle,
		Method: MethodContains,
		Items:  []Item{{Value: "lead", Effect: "-1.5"}},
	}}

	res := Evaluate(Fields{Title: "Team Lead"}, criteria, 3)
	// 3 - 1.5 = 1.5, rounds to 2.
	assert.Equal(t, 2, res.Score)
}

func TestEvaluateExcludeLeavesScoreAlone(t *testing.T) {
	t.Parallel()

	criteria := []Criterion{{
		Field:  FieldTitle,
		Method: MethodContains,
		Items: []Item{
			{Value: "labourer", Effect: "exclude"},
			{Value: "labourer", Effect: "increase"},
		},
	}}

	res := Evaluate(Fields{Title: "General Labourer"}, criteria, 3)
	assert.True(t, res.Excluded)
	assert.Equal(t, 4, res.Score)
	assert.False(t, res.QueueForEnrichment(3))
}

func TestEvaluateMinimumActsAsCeiling(t *testing.T) {
	t.Parallel()

	criteria := []Criterion{
		{
			Field:    FieldTitle,
			Method:   MethodContains,
			Increase: fp(5),
			Items:    []Item{{Value: "chef", Effect: "increase"}},
		},
		{
			Field:  FieldTitle,
			Method: MethodContains,
			Min:    fp(4),
			Items:  []Item{{Value: "chef", Effect: "minimum"}},
		},
		{
			Field:  FieldTitle,
			Method: MethodContains,
			Min:    fp(2),
			Items:  []Item{{Value: "head", Effect: "min_score"}},
		},
	}

	// 3 + 5 = 8, then the tightest ceiling (2) wins.
	res := Evaluate(Fields{Title: "Head Chef"}, criteria, 3)
	assert.Equal(t, 2, res.Score)
}

func TestEvaluateMaximumActsAsFloor(t *testing.T) {
	t.Parallel()

	criteria := []Criterion{
		{
			Field:    FieldTitle,
			Method:   MethodContains,
			Decrease: fp(-4),
			Items:    []Item{{Value: "trainee", Effect: "decrease"}},
		},
		{
			Field:  FieldTitle,
			Method: MethodContains,
			Max:    fp(2),
			Items:  []Item{{Value: "trainee", Effect: "maximum"}},
		},
		{
			Field:  FieldTitle,
			Method: MethodContains,
			Max:    fp(4),
			Items:  []Item{{Value: "cook", Effect: "max_score"}},
		},
	}

	// 3 - 4 = -1, then the tightest floor (4) wins.
	res := Evaluate(Fields{Title: "Trainee Cook"}, criteria, 3)
	assert.Equal(t, 4, res.Score)
}

func TestEvaluateCeilingAppliedBeforeFloor(t *testing.T) {
	t.Parallel()

	criteria := []Criterion{
		{
			Field:  FieldTitle,
			Method: MethodContains,
			Min:    fp(1),
			Items:  []Item{{Value: "cook", Effect: "minimum"}},
		},
		{
			Field:  FieldTitle,
			Method: MethodContains,
			Max:    fp(2),
			Items:  []Item{{Value: "cook", Effect: "maximum"}},
		},
	}

	// Ceiling drags 3 down to 1, then the floor lifts it back to 2.
	res := Evaluate(Fields{Title: "Cook"}, criteria, 3)
	assert.Equal(t, 2, res.Score)
}

func TestEvaluateMethodMatrix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		method  string
		value   string
		title   string
		matched bool
	}{
		{"contains is case-insensitive", "contains", "BARISTA", "Senior barista wanted", true},
		{"unknown method degrades to contains", "fuzzy", "barista", "Barista", true},
		{"list synonym degrades to contains", "list", "barista", "Barista", true},
		{"equals", "equals", "barista", "Barista", true},
		{"equals mismatch", "equals", "barista", "Senior Barista", false},
		{"startswith", "startswith", "senior", "Senior Barista", true},
		{"endswith", "endswith", "barista", "Senior Barista", true},
		{"regex", "regex", `bar\w+a`, "Senior Barista", true},
		{"word boundary hit", "word", "hand", "Kitchen Hand", true},
		{"word boundary miss", "word", "hand", "Handler", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			criteria := []Criterion{{
				Field:  FieldTitle,
				Method: tc.method,
				Items:  []Item{{Value: tc.value, Effect: "increase"}},
			}}
			res := Evaluate(Fields{Title: tc.title}, criteria, 3)
			if tc.matched {
				assert.Equal(t, 4, res.Score, "expected a match")
			} else {
				assert.Equal(t, 3, res.Score, "expected no match")
			}
		})
	}
}

func TestEvaluateEmptyCriteriaIsBase(t *testing.T) {
	t.Parallel()

	res := Evaluate(Fields{Title: "Anything"}, nil, 3)
	assert.Equal(t, 3, res.Score)
	assert.False(t, res.Excluded)
	assert.Empty(t, res.Reasons)
}

func TestResolveField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		field string
		tag   string
		want  string
	}{
		{"job_title", "", FieldTitle},
		{"employer", "", FieldCompany},
		{"suburb", "", FieldLocation},
		{"link", "", FieldURL},
		{"title", "a[data-automation=jobtitle]", FieldTitle},
		{"whatever", "[data-automation=jobcompany]", FieldCompany},
		{"ignored", "joblocation", FieldLocation},
		// Selector-like but unclassifiable: card-view default.
		{"div.fancy#thing", "", FieldTitle},
		// Plain unknown token passes through lowercased.
		{"Shift", "", "shift"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveField(tc.field, tc.tag), "field=%q tag=%q", tc.field, tc.tag)
	}
}

func TestFieldsValueUnknownNeverMatches(t *testing.T) {
	t.Parallel()

	f := Fields{Title: "x", Company: "y"}
	assert.Empty(t, f.Value("shift"))
	assert.Equal(t, "y", f.Value("employer"))
}
