package socketio

import (
	"net"
	"sync"
)

// ConnectionLimiter caps concurrent external connections. Loopback clients
// (the on-device UI) are never counted or evicted; when an external
// connection exceeds the cap, the oldest external connection is evicted.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	// external client IDs, oldest first
	order []string
	// all tracked connections: clientID -> remote IP
	connections map[string]string
}

// NewConnectionLimiter creates a limiter allowing up to maxExternal
// concurrent non-loopback connections.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal: maxExternal,
		connections: make(map[string]string),
	}
}

// TryAdd registers a new connection and returns whether it is allowed plus
// the ID of any evicted client (empty string if none).
func (cl *ConnectionLimiter) TryAdd(clientID, remoteIP string) (allowed bool, evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.connections[clientID]; exists {
		return true, ""
	}
	cl.connections[clientID] = remoteIP

	if isLoopback(remoteIP) {
		return true, ""
	}

	cl.order = append(cl.order, clientID)
	if len(cl.order) > cl.maxExternal {
		evictedID = cl.order[0]
		cl.order = cl.order[1:]
		delete(cl.connections, evictedID)
	}
	return true, evictedID
}

// Remove unregisters a connection when a client disconnects.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	ip, exists := cl.connections[clientID]
	if !exists {
		return
	}
	delete(cl.connections, clientID)

	if isLoopback(ip) {
		return
	}
	for i, id := range cl.order {
		if id == clientID {
			cl.order = append(cl.order[:i], cl.order[i+1:]...)
			break
		}
	}
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
