package main

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/config"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import files directly into the configured store",
	Long: `Import files into the configured object store without going through
the HTTP server. Each file goes through the same digest, size and
deduplication checks as an upload.

Examples:
  # Add a single file
  hashdrop add /path/to/file.txt

  # Add with an explicit content type
  hashdrop add --content-type image/png /path/to/photo`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addContentType string
	addQuiet       bool
)

func init() {
	addCmd.Flags().StringVar(&addContentType, "content-type", "", "content type (default: detected from the extension)")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "print only digests")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, closeStore, err := openObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	defer closeStore()

	env := &hashdrop.Environment{Store: store, Mode: cfg.ServeMode(), ExternalBaseURL: cfg.Server.ExternalBaseURL}
	gateway := hashdrop.NewGateway(hashdrop.GatewayConfig{MaxUploadSize: cfg.MaxUploadSize()})

	var failed int
	for _, path := range args {
		res, err := addFile(cmd, gateway, env, path)
		if err != nil {
			slog.Error("failed to add file", "path", path, "err", err)
			failed++
			continue
		}

		if addQuiet {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Digest)
			continue
		}
		status := "added"
		if res.Existing {
			status = "exists"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", res.Digest, status, path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
	}
	return nil
}

func addFile(cmd *cobra.Command, gateway *hashdrop.Gateway, env *hashdrop.Environment, path string) (hashdrop.UploadResult, error) {
	f, err := os.Open(path) //#nosec G304 -- path is user-provided input
	if err != nil {
		return hashdrop.UploadResult{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return hashdrop.UploadResult{}, err
	}
	if info.IsDir() {
		return hashdrop.UploadResult{}, fmt.Errorf("%s is a directory", path)
	}

	contentType := addContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = hashdrop.DefaultContentType
	}

	return gateway.Upload(cmd.Context(), env, hashdrop.UploadInput{
		Content:     f,
		Size:        info.Size(),
		Filename:    filepath.Base(path),
		ContentType: contentType,
	})
}
