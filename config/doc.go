// Package config handles loading, validating and watching configuration from
// YAML files, .env files and environment variables. Every binary in the
// repository reads its own named file (gateway.yaml, reservation-service.yaml,
// config-server.yaml) through a Loader; the resulting Config carries server,
// registry, breaker, channel, storage and seed-data settings.
package config
