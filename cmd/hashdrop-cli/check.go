package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hashdrop"
)

var errMissing = errors.New("object not present")

var checkCmd = &cobra.Command{
	Use:   "check <digest|file>",
	Short: "Check whether the server holds content",
	Long: `Check whether the server holds the given digest. When the argument is
an existing file, its digest is computed locally first.

Exits with status 1 when the content is missing.

Examples:
  hashdrop-cli check ./photo.jpg
  hashdrop-cli check 2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	formatter := getFormatter()

	digest, err := resolveDigest(args[0])
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return err
	}

	client, err := getClient()
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return err
	}

	result, err := client.Lookup(cmd.Context(), digest)
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return err
	}

	if err := formatter.FormatCheck(os.Stdout, result); err != nil {
		return err
	}
	if !result.Exists {
		return errMissing
	}
	return nil
}

// resolveDigest returns arg when it is a digest, otherwise the digest of the
// file it names.
func resolveDigest(arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		f, err := os.Open(arg) //#nosec G304 -- arg is user-provided input
		if err != nil {
			return "", err
		}
		defer func() { _ = f.Close() }()

		digest, _, err := hashdrop.DigestReader(f)
		return digest, err
	}

	return arg, nil
}
