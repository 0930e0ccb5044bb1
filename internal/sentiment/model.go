package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"moodscope/internal/llm"
)

// Generator is the slice of the transport client the model scorer needs.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
	Model() string
}

// scoringPrompt demands a compact JSON object in the reply. Model output is
// not guaranteed to be pure JSON, so the reply is scanned for a JSON fragment
// rather than parsed wholesale.
const scoringPrompt = `Classify the sentiment of the following text.
Reply with exactly one compact JSON object of the form
{"label": "positive" | "neutral" | "negative", "score": <number between -1.0 and 1.0>}
and nothing else.

Text:
%s`

// ModelScorer asks the model server for a structured sentiment verdict.
type ModelScorer struct {
	client Generator
}

// NewModelScorer wraps a transport client.
func NewModelScorer(client Generator) *ModelScorer {
	return &ModelScorer{client: client}
}

// modelVerdict is the structured reply the prompt asks for.
type modelVerdict struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Score makes exactly one model attempt at temperature 0 and parses a
// best-effort JSON fragment out of the free-form reply. Any failure, from
// transport to parse to out-of-range values, is returned so the chain can
// fall through to the deterministic path.
func (m *ModelScorer) Score(ctx context.Context, text string) (Result, error) {
	reply, err := m.client.Generate(ctx, llm.GenerateRequest{
		Prompt:      fmt.Sprintf(scoringPrompt, text),
		Temperature: 0,
	})
	if err != nil {
		return Result{}, err
	}

	fragment, err := extractJSON(reply)
	if err != nil {
		return Result{}, err
	}

	var verdict modelVerdict
	if err := json.Unmarshal([]byte(fragment), &verdict); err != nil {
		return Result{}, fmt.Errorf("model verdict parse failed: %w", err)
	}

	if verdict.Score < -1.0 || verdict.Score > 1.0 {
		return Result{}, fmt.Errorf("model score %v out of range", verdict.Score)
	}
	switch verdict.Label {
	case LabelPositive, LabelNeutral, LabelNegative:
	default:
		return Result{}, fmt.Errorf("model label %q unknown", verdict.Label)
	}

	return Result{
		Label:  verdict.Label,
		Score:  verdict.Score,
		Source: SourceModel,
	}, nil
}

// extractJSON returns the substring between the first '{' and the last '}'.
// Model replies may wrap the object in preamble or postamble prose.
func extractJSON(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in model reply")
	}
	return reply[start : end+1], nil
}
