package analysis

import (
	"errors"
	"testing"
)

func validResult() *Result {
	return &Result{
		Bias:             BiasCenterLeft,
		BiasConfidence:   0.8,
		BiasReasoning:    "leans left in framing",
		Positive:         0.2,
		Negative:         0.5,
		Neutral:          0.3,
		OverallSentiment: -0.3,
		EmotionalTone:    "concerned",
		PrimaryTopics:    []string{"politics"},
		TopicWeights:     map[string]float64{"politics": 1.0},
		KeyThemes:        []string{"elections"},
		Controversy:      0.4,
	}
}

func TestBiasScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		bias Bias
		want float64
	}{
		{BiasFarLeft, -1.0},
		{BiasLeft, -0.66},
		{BiasCenterLeft, -0.33},
		{BiasCenter, 0.0},
		{BiasNeutral, 0.0},
		{BiasCenterRight, 0.33},
		{BiasRight, 0.66},
		{BiasFarRight, 1.0},
	}
	for _, c := range cases {
		if got := c.bias.Score(); got != c.want {
			t.Fatalf("score(%s) = %v, want %v", c.bias, got, c.want)
		}
	}

	if Bias("moderate").Valid() {
		t.Fatal("unknown classification reported valid")
	}
}

func TestResultValidate(t *testing.T) {
	t.Parallel()

	if err := validResult().Validate(); err != nil {
		t.Fatalf("valid result rejected: %v", err)
	}

	mutations := map[string]func(*Result){
		"unknown bias":       func(r *Result) { r.Bias = "radical" },
		"confidence above 1": func(r *Result) { r.BiasConfidence = 1.2 },
		"negative sentiment": func(r *Result) { r.Positive = -0.1 },
		"overall above 1":    func(r *Result) { r.OverallSentiment = 1.5 },
		"controversy above 1": func(r *Result) { r.Controversy = 2 },
		"sum far from 1": func(r *Result) {
			r.Positive, r.Negative, r.Neutral = 0.5, 0.5, 0.5
		},
	}
	for name, mutate := range mutations {
		r := validResult()
		mutate(r)
		err := r.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("%s: error %v does not wrap ErrMalformedResponse", name, err)
		}
	}
}

func TestSentimentSumTolerance(t *testing.T) {
	t.Parallel()

	// rounding slack within the tolerance must pass
	r := validResult()
	r.Positive, r.Negative, r.Neutral = 0.33, 0.33, 0.33
	if err := r.Validate(); err != nil {
		t.Fatalf("sum 0.99 should be inside tolerance: %v", err)
	}

	r = validResult()
	r.Positive, r.Negative, r.Neutral = 0.4, 0.4, 0.3
	if err := r.Validate(); err == nil {
		t.Fatal("sum 1.1 should be outside tolerance")
	}
}
