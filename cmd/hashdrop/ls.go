package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/config"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List indexed objects",
	Long: `List the objects recorded in the index of the local store, oldest first.

Examples:
  hashdrop ls
  hashdrop ls --limit 20
  hashdrop ls --cursor <next-cursor>
  hashdrop ls --all`,
	Args: cobra.NoArgs,
	RunE: runLs,
}

var (
	lsLimit  int
	lsCursor string
	lsAll    bool
)

func init() {
	lsCmd.Flags().IntVar(&lsLimit, "limit", hashdrop.DefaultListLimit, "maximum number of objects per page")
	lsCmd.Flags().StringVar(&lsCursor, "cursor", "", "pagination cursor from a previous page")
	lsCmd.Flags().BoolVar(&lsAll, "all", false, "fetch every page")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
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

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DIGEST\tSIZE\tCONTENT TYPE\tFILENAME\tCREATED")

	count := 0
	cursor := lsCursor
	for {
		page, err := store.List(ctx, hashdrop.ListQuery{Limit: lsLimit, Cursor: cursor})
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range page.Items {
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
				obj.Digest, obj.Size, obj.ContentType, obj.OriginalFilename,
				obj.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		count += len(page.Items)
		cursor = page.NextCursor

		if !lsAll || cursor == "" {
			break
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "\n%d object(s)\n", count)
	if cursor != "" {
		_, _ = fmt.Fprintf(os.Stdout, "Next page: use --cursor %q\n", cursor)
	}
	return nil
}
