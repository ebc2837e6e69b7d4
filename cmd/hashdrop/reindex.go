package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hashdrop/config"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the object index from stored blobs",
	Long: `Scan the blob directory of the local store and insert an index entry
for every blob that has none. This is useful when:
  - Recovering the index after database loss
  - Moving blobs between servers
  - Switching between sqlite and postgres

Existing entries are never modified. Recovered entries have no original
filename and the application/octet-stream content type.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, closeStore, err := openLocalStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	slog.Info("scanning storage directory", "path", cfg.Store.Path)

	created, err := store.Reindex(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	slog.Info("reindex complete", "entries_created", created)
	return nil
}
