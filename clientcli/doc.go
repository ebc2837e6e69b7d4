// Package clientcli provides a client library for hashdrop servers.
//
// Uploads are digested locally first. The client asks the server whether it
// already holds the digest (an advisory HEAD whose failures are ignored) and
// only then sends the multipart upload with the digest as the hash field.
// Downloads follow CDN redirects and verify the content against its digest.
//
// # Basic Usage
//
//	client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:5708"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		Paths: []string{"./photo.jpg"},
//	})
//
// # Profile Configuration
//
// Profiles in ~/.hashdrop/config.yaml name the servers a user talks to:
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	profile, err := configFile.GetProfile("production")
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli
