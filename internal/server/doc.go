// Package server hosts the Fiber HTTP service and its middleware chain:
// panic recovery, CORS, and request-id tagging. Route handlers are supplied by
// the caller through RouteRegistrar so the proxy package can own request
// semantics while this package owns process-level HTTP plumbing, including the
// shared outbound http.Client used for every upstream call.
package server
