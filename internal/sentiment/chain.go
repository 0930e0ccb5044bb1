package sentiment

import (
	"context"

	"golang.org/x/sync/errgroup"

	"moodscope/internal/fallback"
	"moodscope/internal/logging"
)

// batchConcurrency bounds parallel model calls in ScoreAll.
const batchConcurrency = 4

// Chain is the two-branch scoring service: one model attempt, then the
// deterministic keyword path. Not a retryable sequence and not a state
// machine; exactly one model attempt is made per call.
type Chain struct {
	model   *ModelScorer
	keyword KeywordScorer
	policy  *fallback.Policy
}

// NewChain builds the scoring chain. client may be nil, in which case the
// keyword scorer runs standalone. policy may be nil; when present, model-path
// failures are logged as escalation events in addition to whatever failure
// recording the transport client already did.
func NewChain(client Generator, policy *fallback.Policy) *Chain {
	c := &Chain{policy: policy}
	if client != nil {
		c.model = NewModelScorer(client)
	}
	return c
}

// Score produces a sentiment verdict for text. Total function: it never
// fails, falling through to the deterministic path on any model-side problem.
func (c *Chain) Score(ctx context.Context, text string) Result {
	if c.model == nil {
		return c.keyword.Score(text)
	}

	res, err := c.model.Score(ctx, text)
	if err == nil {
		logging.ScoringDebug("model path scored label=%s score=%.2f", res.Label, res.Score)
		return res
	}

	logging.Scoring("model path failed, using keyword fallback: %v", err)
	if c.policy != nil {
		c.policy.LogEscalation(fallback.EscalationRecord{
			Priority:       fallback.PriorityMedium,
			Reason:         err.Error(),
			ModelAttempted: c.model.client.Model(),
			Provider:       "keyword-fallback",
		})
	}

	return c.keyword.Score(text)
}

// ScoreAll scores texts with bounded concurrency, preserving input order.
// Individual items never fail, so neither does the batch.
func (c *Chain) ScoreAll(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			results[i] = c.Score(ctx, text)
			return nil
		})
	}

	_ = g.Wait() // workers never return errors
	return results
}
