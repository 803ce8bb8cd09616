// Package registry keeps the process-wide directory of service instances.
//
// Readers never lock: every write publishes a new immutable snapshot of the
// serviceName -> instances map, so InstancesOf is a single atomic load.
// Writers are serialized by a mutex. Instances are unique per
// (serviceName, host, port); registering an existing instance again only
// updates its health in place.
//
// The registry can be populated statically from configuration or kept in sync
// with etcd, where services announce themselves under
// /services/{name}/{host}:{port} with a TTL lease.
package registry
