// Package api exposes the migrator over HTTP: descriptor resolution, the
// migration history, a health probe and Prometheus metrics.
package api
