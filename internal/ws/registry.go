package ws

import "sync"

// Registry is the process-local map of live connections: user to
// connections and session room to joined connections. It owns no durable
// state; everything here is rebuilt as clients reconnect.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Client
	byUser map[int]map[string]*Client
	rooms  map[int]map[string]*Client
	joined map[string]map[int]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*Client),
		byUser: make(map[int]map[string]*Client),
		rooms:  make(map[int]map[string]*Client),
		joined: make(map[string]map[int]struct{}),
	}
}

// Register records a new live connection for a user.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[client.ConnID] = client
	if _, ok := r.byUser[client.UserID]; !ok {
		r.byUser[client.UserID] = make(map[string]*Client)
	}
	r.byUser[client.UserID][client.ConnID] = client
}

// Unregister drops the connection and all its room memberships. Removing a
// user's last connection keeps durable state untouched. Returns the removed
// client, or nil if the connection was unknown.
func (r *Registry) Unregister(connID string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.byConn[connID]
	if !ok {
		return nil
	}
	delete(r.byConn, connID)

	if conns, ok := r.byUser[client.UserID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byUser, client.UserID)
		}
	}

	for sessionID := range r.joined[connID] {
		r.removeFromRoom(connID, sessionID)
	}
	delete(r.joined, connID)

	return client
}

// JoinRoom subscribes the connection to a session's events. The caller must
// authorize first; an unknown connection is a silent no-op.
func (r *Registry) JoinRoom(connID string, sessionID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.byConn[connID]
	if !ok {
		return false
	}
	if _, ok := r.rooms[sessionID]; !ok {
		r.rooms[sessionID] = make(map[string]*Client)
	}
	r.rooms[sessionID][connID] = client
	if _, ok := r.joined[connID]; !ok {
		r.joined[connID] = make(map[int]struct{})
	}
	r.joined[connID][sessionID] = struct{}{}
	return true
}

// LeaveRoom unsubscribes the connection from a session's events.
func (r *Registry) LeaveRoom(connID string, sessionID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFromRoom(connID, sessionID)
	if sessions, ok := r.joined[connID]; ok {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(r.joined, connID)
		}
	}
}

func (r *Registry) removeFromRoom(connID string, sessionID int) {
	if members, ok := r.rooms[sessionID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, sessionID)
		}
	}
}

// ConnectionsFor returns a snapshot of the user's live connections.
func (r *Registry) ConnectionsFor(userID int) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Client, 0, len(r.byUser[userID]))
	for _, client := range r.byUser[userID] {
		conns = append(conns, client)
	}
	return conns
}

// RoomMembers returns a snapshot of the connections joined to a session.
func (r *Registry) RoomMembers(sessionID int) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]*Client, 0, len(r.rooms[sessionID]))
	for _, client := range r.rooms[sessionID] {
		members = append(members, client)
	}
	return members
}

// InRoom reports whether the connection has joined the session's room.
func (r *Registry) InRoom(connID string, sessionID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[sessionID][connID]
	return ok
}
