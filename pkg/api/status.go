package api

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatusResponse represents relay status information
type StatusResponse struct {
	Success           bool   `json:"success"`
	UptimeSeconds     uint64 `json:"uptimeSeconds"`
	RegisteredClients int    `json:"registeredClients"`
	QueuedMessages    int    `json:"queuedMessages"`
	RequestsHandled   uint64 `json:"requestsHandled"`
	MessagesRelayed   uint64 `json:"messagesRelayed"`
}

// ClientEntry contains one registered client in a listing
type ClientEntry struct {
	ID       string    `json:"id"` // Hex-encoded client id
	Name     string    `json:"name"`
	LastSeen time.Time `json:"lastSeen"`
}

// ClientsResponse represents a client listing
type ClientsResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Clients []ClientEntry `json:"clients"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// handleStatus handles GET /api/v1/status
func (s *Server) handleStatus(c *gin.Context) {
	clients, err := s.store.CountClients()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Store unavailable",
			Message: err.Error(),
		})
		return
	}

	queued, err := s.store.CountQueuedMessages()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Store unavailable",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Success:           true,
		UptimeSeconds:     uint64(s.relay.Uptime().Seconds()),
		RegisteredClients: clients,
		QueuedMessages:    queued,
		RequestsHandled:   s.relay.RequestsHandled(),
		MessagesRelayed:   s.relay.MessagesRelayed(),
	})
}

// handleClients handles GET /api/v1/clients
func (s *Server) handleClients(c *gin.Context) {
	clients, err := s.store.ListClients()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Store unavailable",
			Message: err.Error(),
		})
		return
	}

	entries := make([]ClientEntry, 0, len(clients))
	for _, rec := range clients {
		entries = append(entries, ClientEntry{
			ID:       hex.EncodeToString(rec.ID[:]),
			Name:     rec.Name,
			LastSeen: time.Unix(rec.LastSeen, 0).UTC(),
		})
	}

	c.JSON(http.StatusOK, ClientsResponse{
		Success: true,
		Count:   len(entries),
		Clients: entries,
	})
}
