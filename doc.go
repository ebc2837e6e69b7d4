// Package hashdrop provides a content-addressed object storage gateway.
//
// Objects are identified by the lowercase hex SHA-256 digest of their exact
// bytes. Uploading content that is already present is detected and reported
// as existing instead of writing a second copy. Retrieval is by digest, either
// by streaming the bytes or by redirecting to a CDN-fronted base URL.
//
// # Key Components
//
//   - Digest: the SHA-256 digest engine used for both addressing and dedup
//   - ObjectStore: the object store capability (Head, Get, Put)
//   - Environment: the per-request set of capabilities (store, serve mode,
//     external base URL), bound to a request through its context
//   - Gateway: the upload and retrieval algorithms
//   - LocalStore: an ObjectStore combining a metadata index (SQLite,
//     PostgreSQL) with a blob store (filesystem)
//
// # Serve Modes
//
//   - ModeDirect: object bytes are streamed by the gateway itself
//   - ModeCDN: clients are redirected to ExternalBaseURL + "/" + digest
//
// # Example Usage
//
//	gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
//	env := &hashdrop.Environment{Store: store, Mode: hashdrop.ModeDirect}
//
//	res, err := gw.Upload(ctx, env, hashdrop.UploadInput{
//	    Content:     f,
//	    Size:        -1,
//	    Filename:    "cat.png",
//	    ContentType: "image/png",
//	})
//
// See the http package for the REST surface and the filesystem, database,
// s3store and cache packages for ObjectStore building blocks.
package hashdrop
