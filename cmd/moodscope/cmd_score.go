package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"moodscope/internal/sentiment"
)

var (
	scoreKeywordOnly bool
	scoreTimeout     time.Duration
)

// scoreCmd scores one or more texts. Scoring is total: the command cannot
// fail on model problems, only report fallback results.
var scoreCmd = &cobra.Command{
	Use:   "score [text...]",
	Short: "Score the sentiment of one or more texts",
	Long: `Scores each argument (or stdin when no arguments are given) through the
two-tier chain: one model attempt, then the deterministic keyword scorer.`,
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	texts := args
	if len(texts) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				texts = append(texts, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}
	if len(texts) == 0 {
		return fmt.Errorf("nothing to score")
	}

	var chainClient sentiment.Generator
	if !scoreKeywordOnly {
		chainClient = newLLMClient()
	}
	chain := sentiment.NewChain(chainClient, policy)

	store := openHistory()
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), scoreTimeout)
	defer cancel()

	results := chain.ScoreAll(ctx, texts)
	for i, res := range results {
		store.Record(texts[i], res.Label, res.Score, res.Source, cfg.LLM.Model)
		fmt.Printf("%-8s  %+.2f  (%s)  %s\n", res.Label, res.Score, res.Source, truncate(texts[i], 60))
		logger.Debug("scored",
			zap.String("label", res.Label),
			zap.Float64("score", res.Score),
			zap.String("source", res.Source))
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
