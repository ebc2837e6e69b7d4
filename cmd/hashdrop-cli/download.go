package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hashdrop/clientcli"
)

var downloadCmd = &cobra.Command{
	Use:   "download <digest> [dest]",
	Short: "Download an object by digest",
	Long: `Download an object by digest.

The destination defaults to the original filename recorded by the server,
or the digest when none was recorded. Use "-" to write to stdout. The
content is verified against the digest.

Examples:
  hashdrop-cli download 2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824
  hashdrop-cli download <digest> ./out/photo.jpg
  hashdrop-cli download <digest> - | less`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func runDownload(cmd *cobra.Command, args []string) error {
	formatter := getFormatter()

	client, err := getClient()
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return err
	}

	opts := clientcli.DownloadOptions{Digest: args[0]}
	if len(args) > 1 {
		opts.LocalPath = args[1]
	}

	result, body, err := client.Download(cmd.Context(), opts)
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return err
	}

	if body != nil {
		written, copyErr := io.Copy(os.Stdout, body)
		closeErr := body.Close()
		if copyErr != nil {
			return fmt.Errorf("write stdout: %w", copyErr)
		}
		if closeErr != nil {
			_ = formatter.FormatError(os.Stderr, closeErr)
			return closeErr
		}
		result.Size = written
		// Keep stdout clean for the content.
		return formatter.FormatDownload(os.Stderr, result)
	}

	return formatter.FormatDownload(os.Stdout, result)
}
