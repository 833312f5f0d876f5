// Package api hosts the operator HTTP endpoints exposed while a fetch runs:
//   - GET /healthz for liveness.
//   - GET /readyz, which turns ready once the sources are built.
//   - GET /metrics for Prometheus scraping of the fetch and HTTP metrics.
package api
