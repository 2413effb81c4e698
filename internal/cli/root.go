package cli

import (
	"fmt"
	"os"

	"github.com/lazypower/engram/internal/config"
	"github.com/lazypower/engram/internal/engine"
	"github.com/lazypower/engram/internal/history"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Tiered associative memory engine",
	Long:  "Engram stores, ages, and ranks remembered interactions across immediate, short-term, and long-term tiers. Single Go binary, local snapshot persistence.",
}

func Execute() error {
	return rootCmd.Execute()
}

var profileFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Deployment profile: default or episodic (or $ENGRAM_PROFILE)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig resolves the profile, snapshot path, and history path from
// flags and environment.
func loadConfig() (config.Config, error) {
	profile := profileFlag
	if profile == "" {
		profile = os.Getenv("ENGRAM_PROFILE")
	}
	cfg, err := config.ForProfile(profile)
	if err != nil {
		return config.Config{}, err
	}

	if path := os.Getenv("ENGRAM_SNAPSHOT"); path != "" {
		cfg.Engine.SnapshotPath = path
	}
	if cfg.Engine.SnapshotPath == "" {
		cfg.Engine.SnapshotPath, err = config.DefaultSnapshotPath()
		if err != nil {
			return config.Config{}, fmt.Errorf("resolve snapshot path: %w", err)
		}
	}

	if path := os.Getenv("ENGRAM_HISTORY"); path != "" {
		cfg.History.Path = path
	}
	if cfg.History.Path == "" {
		cfg.History.Path, err = config.DefaultHistoryPath()
		if err != nil {
			return config.Config{}, fmt.Errorf("resolve history path: %w", err)
		}
	}
	return cfg, nil
}

// openEngine builds an engine from config, loads the snapshot, and
// attaches the history journal. The caller closes the returned DB.
func openEngine() (*engine.Engine, *history.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(cfg.Engine)
	if err := eng.Load(cfg.Engine.SnapshotPath); err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	db, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	eng.SetHistory(db, historyUser())

	return eng, db, nil
}

func historyUser() string {
	if u := os.Getenv("ENGRAM_USER"); u != "" {
		return u
	}
	return "local"
}
