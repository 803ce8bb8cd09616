// Package channel provides the message channel reservations travel on
// between the gateway and the reservation service.
//
// Two implementations exist:
//   - Memory: a buffered Go channel for single-process setups and tests
//   - Redis: a Redis list, pushed with RPUSH and consumed with a BLPOP loop
//
// Delivery guarantees belong to the implementation. Memory loses buffered
// messages on crash; Redis keeps them until a subscriber pops them.
package channel
