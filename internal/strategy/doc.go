// Package strategy defines the instance selection interface used by the
// load balancer and its implementations:
//
//   - Round Robin: sequential distribution, one cursor step per pick
//   - Random: uniform random pick
//
// Strategies only ever see healthy instances; filtering is the load
// balancer's job.
package strategy
