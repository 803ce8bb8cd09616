// Package publisher moves reservations from the gateway to the reservation
// service over a message channel.
//
// The gateway side is Publisher: Publish queues a name and returns at once,
// and a single delivery goroutine sends queued names to the channel. On
// shutdown the queue is drained first.
//
// The service side is Receiver, which saves every received name as a new
// reservation.
package publisher
