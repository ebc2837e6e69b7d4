package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hashdrop/clientcli"
)

var (
	uploadContentType string
	uploadFilename    string
	uploadNoCheck     bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file> [file...]",
	Short: "Upload files to the server",
	Long: `Upload files to the server.

Each file is digested locally. Files larger than the upload limit are
rejected without contacting the server, and files the server already
holds are skipped.

Examples:
  hashdrop-cli upload ./photo.jpg
  hashdrop-cli upload -q ./a.txt ./b.txt
  hashdrop-cli upload --filename report.pdf --content-type application/pdf ./tmp123`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadContentType, "content-type", "t", "", "override content-type")
	uploadCmd.Flags().StringVarP(&uploadFilename, "filename", "f", "", "override the recorded filename (single file only)")
	uploadCmd.Flags().BoolVar(&uploadNoCheck, "no-check", false, "skip the existence pre-check")
}

func runUpload(cmd *cobra.Command, args []string) error {
	formatter := getFormatter()

	client, err := getClient()
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return err
	}

	results, err := client.Upload(cmd.Context(), clientcli.UploadOptions{
		Paths:       args,
		ContentType: uploadContentType,
		Filename:    uploadFilename,
		SkipCheck:   uploadNoCheck,
	})
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return err
	}

	if err := formatter.FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return results[i].Err
		}
	}

	return nil
}
