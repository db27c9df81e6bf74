// Package api hosts the HTTP server, middleware, and REST handlers of the
// shields service. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/patterns, /v1/resolve and /v1/active to inspect how a URL
//     resolves against the stored site settings.
//   - POST/DELETE /v1/site-settings and friends to mutate state.
package api
