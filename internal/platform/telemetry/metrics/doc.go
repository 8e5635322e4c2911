// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - HTTP: request counts and latency by route, method and status
//   - Mutations: optimistic sheet writes by outcome and latency
//
// # Integration
//
// Collectors live on a Registry owned by the process (never the Prometheus
// default registry) and are exposed in Prometheus text format through
// Registry.Handler, which the API server mounts at /metrics.
package metrics
