package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hashdrop/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "hashdrop",
	Short:   "Content-addressed object storage gateway",
	Long: `hashdrop stores uploads under the SHA-256 digest of their bytes.
Identical content is stored once; retrieval either streams the bytes
or redirects to a CDN.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg.Log)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: HASHDROP_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: hashdrop.db, env: HASHDROP_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("store-type", "", "object store: local, s3 (default: local, env: HASHDROP_STORE_TYPE)")
	rootCmd.PersistentFlags().String("storage-path", "", "blob directory for the local store (default: ./data, env: HASHDROP_STORE_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: HASHDROP_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json (env: HASHDROP_LOG_FORMAT)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
