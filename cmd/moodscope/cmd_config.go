package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"moodscope/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage moodscope configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to .moodscope/config.yaml",
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = filepath.Join(workspace, ".moodscope", "config.yaml")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}
