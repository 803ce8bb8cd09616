// Package router forwards requests to service instances by name.
//
// Route resolves an instance through the load balancer and performs the HTTP
// call inside the circuit breaker keyed by the service name. Non-2xx answers
// count as failures. When the breaker fails or short-circuits, the fallback
// registered for the service is returned with Degraded set.
package router
