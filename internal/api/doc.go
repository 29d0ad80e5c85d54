// Package api hosts the RPC gateway: the HTTP server, middleware, and JSON
// handlers through which clients schedule tasks. Routes:
//   - POST /v1/tasks schedules a crawl or scrape task.
//   - GET /v1/stats reports frontier, in-flight and robots cache sizes.
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
package api
