// Package network implements the relay's TCP connection server and the
// request dispatcher that executes framed requests against the store.
package network

import (
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/messageu/relay-node/pkg/storage"
)

// RelayServer accepts client connections and serves the relay protocol
type RelayServer struct {
	Port int

	store      *storage.DB
	dispatcher *Dispatcher
	listener   net.Listener
	startTime  time.Time

	// Statistics
	requestsHandled atomic.Uint64
	messagesRelayed atomic.Uint64
}

// NewRelayServer creates a relay server over an open store
func NewRelayServer(port int, store *storage.DB) *RelayServer {
	return &RelayServer{
		Port:       port,
		store:      store,
		dispatcher: NewDispatcher(store),
		startTime:  time.Now(),
	}
}

// Start begins listening and accepting connections
func (rs *RelayServer) Start() error {
	addr := fmt.Sprintf(":%d", rs.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	rs.listener = listener
	log.Printf("Relay server listening on %s", listener.Addr())

	go rs.acceptLoop()

	return nil
}

// Stop closes the listening socket. Connections already being served run
// until their peer disconnects.
func (rs *RelayServer) Stop() error {
	if rs.listener != nil {
		return rs.listener.Close()
	}
	return nil
}

// Addr returns the bound listener address
func (rs *RelayServer) Addr() net.Addr {
	if rs.listener == nil {
		return nil
	}
	return rs.listener.Addr()
}

// Uptime returns how long the server has been running
func (rs *RelayServer) Uptime() time.Duration {
	return time.Since(rs.startTime)
}

// RequestsHandled returns the number of requests dispatched so far
func (rs *RelayServer) RequestsHandled() uint64 {
	return rs.requestsHandled.Load()
}

// MessagesRelayed returns the number of messages accepted for delivery
func (rs *RelayServer) MessagesRelayed() uint64 {
	return rs.messagesRelayed.Load()
}

// GetStats returns relay statistics
func (rs *RelayServer) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"uptime_seconds":   uint64(time.Since(rs.startTime).Seconds()),
		"requests_handled": rs.requestsHandled.Load(),
		"messages_relayed": rs.messagesRelayed.Load(),
	}

	if clients, err := rs.store.CountClients(); err == nil {
		stats["registered_clients"] = clients
	}
	if queued, err := rs.store.CountQueuedMessages(); err == nil {
		stats["queued_messages"] = queued
	}

	return stats
}
