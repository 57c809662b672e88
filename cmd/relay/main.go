package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/messageu/relay-node/pkg/api"
	"github.com/messageu/relay-node/pkg/network"
	"github.com/messageu/relay-node/pkg/storage"
)

const (
	defaultPort       = 1357
	portInfoFile      = "myport.info"
	defaultDBPath     = "defensive.db"
	heartbeatInterval = 5 * time.Minute
)

var (
	port    = flag.Int("port", 0, "Port to listen on (0: use the port file, or the default)")
	dbPath  = flag.String("db", defaultDBPath, "Path to the relay database")
	keepDB  = flag.Bool("keep", false, "Keep the existing database instead of resetting it")
	apiPort = flag.Int("api-port", 0, "HTTP admin API port (0: disabled)")
)

func main() {
	flag.Parse()

	listenPort := *port
	if listenPort == 0 {
		listenPort = resolvePort()
	}

	if *keepDB {
		log.Println("Keeping existing database")
	} else {
		resetDatabase(*dbPath)
	}

	db, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	relay := network.NewRelayServer(listenPort, db)
	if err := relay.Start(); err != nil {
		log.Fatalf("Failed to start relay server: %v", err)
	}

	log.Printf("✓ Relay server listening on port %d", listenPort)

	var adminServer *api.Server
	if *apiPort > 0 {
		config := api.DefaultConfig()
		config.Port = *apiPort

		adminServer = api.NewServer(relay, db, config)
		go func() {
			if err := adminServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Admin API error: %v", err)
			}
		}()

		log.Printf("✓ Admin API listening on port %d", *apiPort)
	}

	go startHeartbeatLoop(relay)

	waitForShutdown(relay, adminServer, db)
}

// resolvePort reads the listen port from the port file. A missing or
// unreadable file falls back to the default port and writes a fresh file.
func resolvePort() int {
	if data, err := os.ReadFile(portInfoFile); err == nil {
		if p, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			log.Printf("Port %d read from %s", p, portInfoFile)
			return p
		}
		log.Printf("Invalid content in %s, falling back to default port", portInfoFile)
	}

	if err := os.WriteFile(portInfoFile, []byte(strconv.Itoa(defaultPort)), 0644); err != nil {
		log.Printf("Could not create %s: %v", portInfoFile, err)
	} else {
		log.Printf("Created %s with default port %d", portInfoFile, defaultPort)
	}

	return defaultPort
}

// resetDatabase removes the database file and its WAL siblings so every run
// starts from an empty store
func resetDatabase(path string) {
	removed := false
	for _, f := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(f); err == nil {
			removed = true
		}
	}

	if removed {
		log.Printf("Database deleted: %s (fresh start)", path)
	} else {
		log.Println("Starting with fresh database")
	}
}

// startHeartbeatLoop periodically logs relay statistics
func startHeartbeatLoop(relay *network.RelayServer) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		stats := relay.GetStats()
		log.Printf("Heartbeat: clients=%v queued=%v handled=%v relayed=%v",
			stats["registered_clients"], stats["queued_messages"],
			stats["requests_handled"], stats["messages_relayed"])
	}
}

func waitForShutdown(relay *network.RelayServer, adminServer *api.Server, db *storage.DB) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan

	log.Println("Shutting down gracefully...")

	if adminServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adminServer.Shutdown(ctx); err != nil {
			log.Printf("Error stopping admin API: %v", err)
		}
	}

	if err := relay.Stop(); err != nil {
		log.Printf("Error stopping relay: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("✓ Relay server stopped")
}
