package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lazypower/engram/internal/engine"
	"github.com/lazypower/engram/internal/memory"
	"github.com/spf13/cobra"
)

var (
	addTopics     []string
	addLocation   string
	addActivity   string
	addImportance float64
	addEmotion    string
	addIntensity  float64
	addValence    float64
)

var addCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Store a new memory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringSliceVarP(&addTopics, "topic", "t", nil, "Topic tags (repeatable)")
	addCmd.Flags().StringVar(&addLocation, "location", "", "Location context")
	addCmd.Flags().StringVar(&addActivity, "activity", "", "Activity context")
	addCmd.Flags().Float64VarP(&addImportance, "importance", "i", 0.5, "Importance in [0,1]")
	addCmd.Flags().StringVar(&addEmotion, "emotion", "", "Primary emotion label")
	addCmd.Flags().Float64Var(&addIntensity, "intensity", 0.5, "Emotional intensity in [0,1]")
	addCmd.Flags().Float64Var(&addValence, "valence", 0, "Emotional valence in [-1,1]")

	recallCmd.Flags().IntVarP(&recallLimit, "limit", "n", 10, "Maximum number of results")
	recallCmd.Flags().StringSliceVarP(&recallTopics, "topic", "t", nil, "Context topics (repeatable)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	content := strings.Join(args, " ")

	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	md := memory.Metadata{
		Topics:   addTopics,
		Location: addLocation,
		Activity: addActivity,
	}
	var es *memory.EmotionalState
	if addEmotion != "" {
		es = &memory.EmotionalState{
			PrimaryEmotion: addEmotion,
			Intensity:      addIntensity,
			Valence:        addValence,
		}
	}

	rec, err := eng.AddMemory(content, md, es, addImportance)
	if err != nil {
		return fmt.Errorf("add memory: %w", err)
	}

	if err := saveSnapshot(eng); err != nil {
		return err
	}
	fmt.Printf("stored record %d\n", rec.ID)
	return nil
}

var (
	recallLimit  int
	recallTopics []string
)

var recallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Rank stored memories against a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecall,
}

func runRecall(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	ranked := eng.RecallMemory(query, memory.Context{Topics: recallTopics})
	if len(ranked) > recallLimit {
		ranked = ranked[:recallLimit]
	}

	for _, r := range ranked {
		fmt.Printf("%6.3f  [%d] %s\n", r.Score, r.Record.ID, r.Record.Content)
	}
	return nil
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show engine statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, db, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(eng.Stats())
	},
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run a lifecycle sweep and a consolidation pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, db, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		moved := eng.Sweep()
		removed := eng.Consolidate()
		if err := saveSnapshot(eng); err != nil {
			return err
		}
		fmt.Printf("promoted %d, pruned %d\n", moved, removed)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent journaled interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		interactions, err := db.Recent(historyUser(), 20)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		for _, it := range interactions {
			fmt.Printf("%s  %s\n", it.Timestamp.Format("2006-01-02 15:04"), it.Content)
		}
		return nil
	},
}

// saveSnapshot persists the engine to the configured snapshot path.
func saveSnapshot(eng *engine.Engine) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := eng.Save(cfg.Engine.SnapshotPath); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
