// Package handler implements the HTTP handlers of the gateway and the
// reservation service, plus the logging and rate limiting middleware they
// share.
package handler
