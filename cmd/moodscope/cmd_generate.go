package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"moodscope/internal/llm"
)

var (
	genTemperature float64
	genModel       string
	genImages      []string
	genPriority    string
	genTimeout     time.Duration
)

// generateCmd is a raw passthrough to the model server. Unlike score, it
// surfaces transport failures to the user.
var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Send a raw generation request to the model server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	var images [][]byte
	for _, path := range genImages {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image %s: %w", path, err)
		}
		images = append(images, data)
	}

	client := newLLMClient()

	ctx, cancel := context.WithTimeout(cmd.Context(), genTimeout)
	defer cancel()

	text, err := client.Generate(ctx, llm.GenerateRequest{
		Model:       genModel,
		Prompt:      prompt,
		Temperature: genTemperature,
		Images:      images,
		Priority:    genPriority,
	})
	if err != nil {
		var httpErr *llm.HTTPError
		switch {
		case errors.As(err, &httpErr):
			logger.Error("model server error", zap.Int("status", httpErr.StatusCode))
		case errors.Is(err, llm.ErrEmptyResponse):
			logger.Error("model server returned an empty response")
		}
		return err
	}

	fmt.Println(text)
	return nil
}
