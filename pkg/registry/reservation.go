package registry

import "sync"

// Reservation represents one in-flight upstream attempt against an
// instance. Creating it increments the instance's connection count;
// Release decrements it exactly once, no matter how many times it is
// called. Callers defer Release immediately after acquiring so the
// count is restored on every exit path, including panics and request
// cancellation.
type Reservation struct {
	instanceID string
	registry   *Registry
	release    sync.Once
}

// AcquireConnection increments the instance's in-flight count and
// returns the paired reservation.
func (r *Registry) AcquireConnection(instanceID string) *Reservation {
	r.incrementConnections(instanceID)
	return &Reservation{
		instanceID: instanceID,
		registry:   r,
	}
}

// InstanceID returns the instance the reservation is held against.
func (res *Reservation) InstanceID() string {
	return res.instanceID
}

// Release decrements the instance's in-flight count. Safe to call more
// than once and from deferred paths.
func (res *Reservation) Release() {
	res.release.Do(func() {
		res.registry.decrementConnections(res.instanceID)
	})
}
