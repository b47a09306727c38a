/*
Package chat contains the session & broadcast engine.

This file defines the connection registry, which maps each live transport
connection to at most one authenticated user record.
*/
package chat

import "huddle/internal/app/user"

// Registry owns the Connected record of every authenticated connection,
// keyed by connection id. Like the other state structures it is only touched
// from the hub goroutine.
type Registry struct {
	bound map[string]*user.Connected
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		bound: make(map[string]*user.Connected),
	}
}

// Bind installs the record for its connection id. A connection binds at most
// once between unbinds; callers check Lookup first.
func (r *Registry) Bind(connected *user.Connected) {
	r.bound[connected.ConnID] = connected
}

// Unbind removes and returns the record for connID. The second return is
// false when the connection never authenticated, which is a normal condition
// on disconnect.
func (r *Registry) Unbind(connID string) (*user.Connected, bool) {
	connected, ok := r.bound[connID]
	if !ok {
		return nil, false
	}

	delete(r.bound, connID)
	return connected, true
}

// Lookup returns the record for connID, if the connection is authenticated.
func (r *Registry) Lookup(connID string) (*user.Connected, bool) {
	connected, ok := r.bound[connID]
	return connected, ok
}

// Len reports how many connections are currently authenticated.
func (r *Registry) Len() int {
	return len(r.bound)
}
