// Package observability provides structured JSON logging and Prometheus
// metrics for the resource service.
package observability
