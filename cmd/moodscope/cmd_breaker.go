package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"moodscope/internal/fallback"
)

var breakerWatch bool

var breakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Inspect or reset the advisory circuit breaker",
}

var breakerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-priority circuit breaker state",
	RunE:  runBreakerStatus,
}

// breakerResetCmd is the manual intervention path: an open breaker never
// closes on its own.
var breakerResetCmd = &cobra.Command{
	Use:   "reset [priority]",
	Short: "Close the breaker and zero failure counts for a priority (or all)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBreakerReset,
}

func runBreakerStatus(cmd *cobra.Command, args []string) error {
	if !policy.Enabled() {
		fmt.Println("fallback policy disabled (no config file)")
		return nil
	}

	printSnapshot(policy.Snapshot())

	if !breakerWatch {
		return nil
	}

	// Follow tracker rewrites. The tracker is replaced wholesale on each
	// recorded failure, so watch its directory and filter by name.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	trackerPath := policy.TrackerPath()
	if err := watcher.Add(filepath.Dir(trackerPath)); err != nil {
		return fmt.Errorf("failed to watch tracker directory: %w", err)
	}

	logger.Info("watching quota tracker", zap.String("path", trackerPath))

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != trackerPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fmt.Println("---")
				printSnapshot(policy.Snapshot())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func runBreakerReset(cmd *cobra.Command, args []string) error {
	if !policy.Enabled() {
		fmt.Println("fallback policy disabled (no config file)")
		return nil
	}

	priority := ""
	if len(args) == 1 {
		priority = args[0]
	}

	if err := policy.Reset(priority); err != nil {
		return err
	}

	printSnapshot(policy.Snapshot())
	return nil
}

func printSnapshot(tracker fallback.Tracker) {
	if len(tracker.CircuitBreaker) == 0 {
		fmt.Println("no failures recorded")
		return
	}

	priorities := make([]string, 0, len(tracker.CircuitBreaker))
	for p := range tracker.CircuitBreaker {
		priorities = append(priorities, p)
	}
	sort.Strings(priorities)

	for _, p := range priorities {
		rec := tracker.CircuitBreaker[p]
		line := fmt.Sprintf("%-8s %-7s failures=%d", p, rec.State, rec.FailureCount)
		if rec.LastFailure != nil {
			line += "  last_failure=" + rec.LastFailure.Format("2006-01-02 15:04:05")
		}
		if rec.OpenedAt != nil {
			line += "  opened_at=" + rec.OpenedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Println(line)
	}
}
