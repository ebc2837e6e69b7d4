// Package config provides configuration loading and validation for hashdrop.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (HASHDROP_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with HASHDROP_ prefix:
//   - server.mode → HASHDROP_SERVER_MODE
//   - server.external_base_url → HASHDROP_SERVER_EXTERNAL_BASE_URL
//   - s3.bucket → HASHDROP_S3_BUCKET
//
// # Configuration Structure
//
//   - Server: port, serve mode (direct/cdn), external base URL, upload limit
//   - Store: local or s3, blob path, head cache size
//   - Database: object index backend for the local store
//   - S3: bucket settings for the s3 store
//   - CORS, Metrics and Log
//
// An s3 store requires s3.endpoint and s3.bucket. A cdn mode server without
// an external base URL starts, but answers content requests with 500.
package config
