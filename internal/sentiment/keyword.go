// Package sentiment scores text on a [-1, 1] scale with a two-tier chain:
// a model-backed scorer first, then a deterministic keyword scorer that never
// fails. Score is a total function; callers never see an error, only possibly
// lower-confidence results from the fallback path.
package sentiment

import "strings"

// Result labels.
const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// Scorer sources.
const (
	SourceModel   = "model"
	SourceKeyword = "keyword"
)

// Result is one sentiment verdict. Score is clamped to [-1.0, 1.0].
type Result struct {
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
	Source string  `json:"source,omitempty"`
}

// Label thresholds, shared by both scoring paths.
const (
	positiveThreshold = 0.2
	negativeThreshold = -0.2
)

// labelFor derives a label from a score via the fixed thresholds.
func labelFor(score float64) string {
	switch {
	case score > positiveThreshold:
		return LabelPositive
	case score < negativeThreshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// Word lists for the deterministic path. Matching is substring containment,
// not tokenized: "crash" counts inside "crashed".
var (
	positiveWords = []string{
		"good", "great", "excellent", "love", "awesome",
		"fast", "smooth", "reliable", "helpful", "happy",
	}
	negativeWords = []string{
		"bad", "terrible", "awful", "hate", "poor",
		"slow", "crash", "broken", "bug", "fail",
	}
)

// KeywordScorer is the deterministic scorer: pure, side-effect free, never
// fails. Used both as the fallback tier and standalone when no model client
// is configured.
type KeywordScorer struct{}

// Score counts positive and negative word occurrences and normalizes
// (positive - negative) / 5.0 into [-1.0, 1.0].
func (KeywordScorer) Score(text string) Result {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}

	score := clamp(float64(pos-neg)/5.0, -1.0, 1.0)

	return Result{
		Label:  labelFor(score),
		Score:  score,
		Source: SourceKeyword,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
