// Package healthcheck implements periodic health checking for registered
// service instances. It probes each instance's /health endpoint and updates
// the registry when the result changes.
package healthcheck
