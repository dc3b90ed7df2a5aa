package classifier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted devolve os valores em sequência, em ciclo.
type scripted struct {
	values []float64
	i      int
}

func (s *scripted) Float64() float64 {
	v := s.values[s.i%len(s.values)]
	s.i++
	return v
}

type panicking struct{}

func (panicking) Float64() float64 { panic("entropy exhausted") }

func TestClassifyText_KnownItems(t *testing.T) {
	s := NewScorer()

	cases := []struct {
		text string
		want Category
	}{
		{"plastic bottle", Recyclable},
		{"battery acid", Hazardous},
		{"banana peel", Biodegradable},
		{"Empty PLASTIC Bottle", Recyclable},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			res := s.ClassifyText(tc.text)
			assert.Equal(t, tc.want, res.Category)
			assert.GreaterOrEqual(t, res.Confidence, 0.60)
			assert.False(t, res.Degraded)
		})
	}
}

func TestClassifyText_SingleCategoryHitsCeiling(t *testing.T) {
	res := NewScorer().ClassifyText("plastic bottle")
	assert.Equal(t, Result{Category: Recyclable, Confidence: 0.95}, res)
}

func TestClassifyText_MixedCategories(t *testing.T) {
	// recyclable: glass 1.5 + jar 1.3; biodegradable: food 1.4
	res := NewScorer().ClassifyText("glass jar with food")
	assert.Equal(t, Recyclable, res.Category)
	assert.Equal(t, 0.83, res.Confidence)
}

func TestClassifyText_NoKeywordReturnsFallback(t *testing.T) {
	res := NewScorer().ClassifyText("xyz")
	assert.Equal(t, Fallback, res)
	assert.Equal(t, Recyclable, res.Category)
	assert.Equal(t, 0.30, res.Confidence)
}

func TestClassifyText_TiesGoToEarlierCategory(t *testing.T) {
	s := NewScorer()

	// tin (1.3) x oil (1.3)
	assert.Equal(t, Recyclable, s.ClassifyText("tin oil").Category)
	// bone (1.4) x drug (1.4)
	assert.Equal(t, Biodegradable, s.ClassifyText("bone drug").Category)
}

func TestClassifyText_ConfidenceAlwaysInRange(t *testing.T) {
	s := NewScorer()
	kws := DefaultKeywords()

	var inputs []string
	for _, a := range Categories {
		for _, b := range Categories {
			for i := range kws[a] {
				j := i % len(kws[b])
				inputs = append(inputs, fmt.Sprintf("%s and %s", kws[a][i], kws[b][j]))
			}
		}
	}
	inputs = append(inputs, "", "nothing here", "🙂")

	for _, in := range inputs {
		res := s.ClassifyText(in)
		assert.GreaterOrEqual(t, res.Confidence, 0.30, in)
		assert.LessOrEqual(t, res.Confidence, 0.95, in)
		assert.True(t, res.Category.Valid(), in)
	}
}

func TestScores_WeightsByKeywordLength(t *testing.T) {
	scores := NewScorer().Scores("cardboard box")
	// cardboard 1.9 + box 1.3
	assert.InDelta(t, 3.2, scores[Recyclable], 1e-9)
	assert.Zero(t, scores[Biodegradable])
	assert.Zero(t, scores[Hazardous])
	assert.Len(t, scores, len(Categories))
}

func TestClassifyImage_WeightedDraw(t *testing.T) {
	cases := []struct {
		name          string
		width, height int
		draws         []float64
		want          Result
	}{
		{"default first bucket", 100, 100, []float64{0, 0}, Result{Category: Recyclable, Confidence: 0.75}},
		{"default second bucket", 100, 100, []float64{0.65, 0.999}, Result{Category: Biodegradable, Confidence: 0.95}},
		{"default last bucket", 100, 100, []float64{0.95, 0.5}, Result{Category: Hazardous, Confidence: 0.85}},
		{"large image", 2000, 1000, []float64{0.65, 0.5}, Result{Category: Recyclable, Confidence: 0.85}},
		{"large image tail", 2000, 1000, []float64{0.95, 0.5}, Result{Category: Hazardous, Confidence: 0.85}},
		{"exactly one megapixel is not large", 1000, 1000, []float64{0.65, 0.5}, Result{Category: Biodegradable, Confidence: 0.85}},
		{"wide below split", 400, 100, []float64{0.79, 0.5}, Result{Category: Recyclable, Confidence: 0.85}},
		{"wide above split", 400, 100, []float64{0.81, 0.5}, Result{Category: Biodegradable, Confidence: 0.85}},
		{"aspect exactly two is not wide", 200, 100, []float64{0.65, 0.5}, Result{Category: Biodegradable, Confidence: 0.85}},
		{"zero height counts as square", 500, 0, []float64{0.65, 0.5}, Result{Category: Biodegradable, Confidence: 0.85}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScorer(WithRandom(&scripted{values: tc.draws}))
			assert.Equal(t, tc.want, s.ClassifyImage(tc.width, tc.height, "PNG"))
		})
	}
}

func TestClassifyImage_InvalidDimensionsDegrade(t *testing.T) {
	s := NewScorer(WithRandom(&scripted{values: []float64{0.5}}))

	for _, dims := range [][2]int{{0, 10}, {-1, 10}, {10, -1}} {
		res := s.ClassifyImage(dims[0], dims[1], "PNG")
		assert.True(t, res.Degraded, "%v", dims)
		assert.Equal(t, Recyclable, res.Category)
		assert.Equal(t, 0.30, res.Confidence)
	}
}

func TestClassifyImage_RandomFailureDegrades(t *testing.T) {
	res := NewScorer(WithRandom(panicking{})).ClassifyImage(100, 100, "PNG")
	assert.True(t, res.Degraded)
	assert.Equal(t, Fallback.Category, res.Category)
	assert.Equal(t, Fallback.Confidence, res.Confidence)
}

func TestClassifyImage_SameSeedSameSequence(t *testing.T) {
	a := NewScorer(WithSeed(42))
	b := NewScorer(WithSeed(42))

	for i := 0; i < 50; i++ {
		w, h := 100+i*37, 80+i*11
		ra, rb := a.ClassifyImage(w, h, "JPEG"), b.ClassifyImage(w, h, "JPEG")
		require.Equal(t, ra, rb, "draw %d", i)
		require.GreaterOrEqual(t, ra.Confidence, 0.75)
		require.LessOrEqual(t, ra.Confidence, 0.95)
	}
}

func TestWithKeywords_ReplacesTable(t *testing.T) {
	s := NewScorer(WithKeywords(KeywordTable{
		Hazardous: {"Lithium"},
	}))

	assert.Equal(t, Hazardous, s.ClassifyText("old lithium pack").Category)
	assert.Equal(t, Fallback, s.ClassifyText("plastic bottle"))
}

func TestWithKeywords_InvalidTableKeepsDefault(t *testing.T) {
	s := NewScorer(WithKeywords(KeywordTable{"metal": {"iron"}}))
	assert.Equal(t, DefaultKeywords(), s.Keywords())
}

func TestDisposalTip(t *testing.T) {
	for _, c := range Categories {
		assert.NotEqual(t, unknownTip, DisposalTip(c), c)
	}
	assert.Contains(t, DisposalTip(Hazardous), "hazardous waste collection")
	assert.Equal(t, "Check local waste management guidelines for proper disposal.", DisposalTip("unknown"))
}
