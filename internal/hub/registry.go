package hub

import (
	"sync"
)

// registry maps a user id to that user's live connections keyed by
// connection id. It is the only shared mutable state in the hub and is
// guarded by a single coarse mutex. A user id is present iff at least one
// of their connections is live; removing the last connection removes the
// outer entry.
type registry struct {
	mu    sync.Mutex
	conns map[string]map[string]*Client
}

func newRegistry() *registry {
	return &registry{
		conns: make(map[string]map[string]*Client),
	}
}

// register inserts the connection under the user's entry, creating the
// entry if absent, and reports whether this was the user's first live
// connection.
func (r *registry) register(userId, connId string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userConns, ok := r.conns[userId]
	if !ok {
		userConns = make(map[string]*Client)
		r.conns[userId] = userConns
	}
	userConns[connId] = c

	return !ok
}

// unregister removes the connection and reports whether it was the user's
// last one, which is the signal to flip presence to offline.
func (r *registry) unregister(userId, connId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userConns, ok := r.conns[userId]
	if !ok {
		return false
	}

	delete(userConns, connId)
	if len(userConns) == 0 {
		delete(r.conns, userId)
		return true
	}

	return false
}

func (r *registry) isOnline(userId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.conns[userId]) > 0
}

// sendToUser queues the event on every live connection of the user. A
// user with no live connections is a no-op, not an error.
func (r *registry) sendToUser(userId string, ev *ServerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.conns[userId] {
		c.queueEvent(ev)
	}
}

func (r *registry) fanOut(userIds []string, ev *ServerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, userId := range userIds {
		for _, c := range r.conns[userId] {
			c.queueEvent(ev)
		}
	}
}

// allClients snapshots every live connection, used at shutdown.
func (r *registry) allClients() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	var clients []*Client
	for _, userConns := range r.conns {
		for _, c := range userConns {
			clients = append(clients, c)
		}
	}

	return clients
}

func (r *registry) numConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for _, userConns := range r.conns {
		n += len(userConns)
	}

	return n
}
