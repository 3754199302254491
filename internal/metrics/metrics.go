// Package metrics holds the service's Prometheus collectors.
package metrics

// Namespace prefixes every metric name.
const Namespace = "topicdex"
