// Package http serves the hashdrop gateway over HTTP.
//
// Routes:
//
//	HEAD /objects?digest=        metadata headers only
//	GET  /objects?digest=        stream (direct mode) or 302 redirect (cdn mode)
//	POST /objects                multipart upload with file, filename, contentType and optional hash
//	GET  /objects/check?digest=  JSON existence check
//	GET  /raw/{digest}           always streams, used as a CDN origin
//
// The digest query parameter may also be given as hash. Digests are
// lowercased before validation.
//
// # Environment
//
// Every object route needs a *hashdrop.Environment bound to the request.
// BindEnvironment asks an EnvironmentProvider for one and RequireEnvironment
// rejects unbound requests with 500 "Platform context not found":
//
//	env := &hashdrop.Environment{Store: store, Mode: hashdrop.ModeDirect}
//	handler := http.NewHandler(&http.HandlerConfig{
//	    Provider:    http.StaticProvider{Env: env},
//	    MetricsPath: "/metrics",
//	}, hashdrop.NewGateway(hashdrop.GatewayConfig{}))
//	http.ListenAndServe(":5708", handler.Router())
//
// Hosts that resolve the environment elsewhere can leave Provider nil and
// call Bind from their own middleware.
//
// Errors are written as JSON ErrorResponse bodies. Client errors map to 400,
// missing objects to 404 and everything else to 500 with a fixed message.
package http
