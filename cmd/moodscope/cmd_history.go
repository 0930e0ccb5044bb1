package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scoring results",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.History.Enabled {
		fmt.Println("history disabled in config")
		return nil
	}

	store := openHistory()
	if store == nil {
		return fmt.Errorf("history store unavailable")
	}
	defer store.Close()

	entries, err := store.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("no history yet")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  %-8s %+.2f  (%s)  %s\n",
			e.ScoredAt.Format("2006-01-02 15:04:05"), e.Label, e.Score, e.Source, e.InputHash)
	}
	return nil
}
