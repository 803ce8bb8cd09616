// Package logger provides structured logging with configurable log levels on
// top of log/slog. Loggers are tagged with the environment and service name
// so that output from the gateway, the reservation service and the config
// server can be told apart when aggregated.
package logger
