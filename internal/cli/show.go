package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppiankov/claimsynth/internal/pipeline"
	"github.com/ppiankov/claimsynth/internal/store"
)

var showRunID string

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <group_id>",
	Short: "Print one group from the SQLite group index",
	Long: `Show looks a group up by its id in the group index written by
synthesize --db. The latest run is used unless --run is given.

Example:
  claimsynth show 3 --db groups.db
  claimsynth show 0 --db groups.db --run 8c1f...`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVar(&showRunID, "run", "", "run id (default: latest run)")
	showCmd.Flags().StringVar(&dbPath, "db", "", "SQLite group index path (default: output.db_path)")
}

func runShow(cmd *cobra.Command, args []string) error {
	groupID, err := strconv.Atoi(args[0])
	if err != nil || groupID < 0 {
		return fmt.Errorf("invalid group id %q", args[0])
	}

	runID := uuid.Nil
	if showRunID != "" {
		if runID, err = uuid.Parse(showRunID); err != nil {
			return fmt.Errorf("invalid run id: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := dbPath
	if path == "" {
		path = cfg.Output.DBPath
	}
	if path == "" {
		return errors.New("no group index: pass --db or set output.db_path")
	}

	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open group index: %w", err)
	}
	defer db.Close()

	entry, err := db.Get(context.Background(), runID, groupID)
	if errors.Is(err, store.ErrGroupNotFound) {
		return fmt.Errorf("group %d: %w", groupID, err)
	}
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Method: %s, cohesion %.3f\n\n", entry.Method, entry.Cohesion)
	}
	data, err := pipeline.EncodeJSON(entry.Group)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
