// Package metric provides Prometheus metrics registration and exposition for
// serialframe components.
//
// The MetricsRegistry wraps a private prometheus.Registry and namespaces
// registrations per service so two components cannot silently clobber each
// other's collectors. Components receive the registry through their
// dependency structs and register their own counters and gauges; nothing is
// collected unless a registry is provided (nil registry = metrics disabled).
//
// The Server exposes the registry over HTTP at /metrics alongside a trivial
// /health endpoint.
package metric
