package storage

import (
	"fmt"
	"log"
	"time"

	"github.com/messageu/relay-node/pkg/protocol"
)

// ClientRecord represents one registered client
type ClientRecord struct {
	ID       protocol.ClientID
	Name     string
	LastSeen int64 // Unix seconds
}

// RegisterClient registers a new client under a unique name and returns its
// freshly assigned id. Returns ErrNameTaken if the name is already in use.
func (d *DB) RegisterClient(name string, publicKey []byte) (protocol.ClientID, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return protocol.ClientID{}, fmt.Errorf("failed to begin registration: %v", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow("SELECT 1 FROM clients WHERE name = ?", name).Scan(&exists)
	if err == nil {
		log.Printf("Registration rejected, name %q already exists", name)
		return protocol.ClientID{}, ErrNameTaken
	}
	if scanErr(err) != ErrNotFound {
		return protocol.ClientID{}, fmt.Errorf("failed to check name: %v", err)
	}

	id, err := protocol.GenerateClientID()
	if err != nil {
		return protocol.ClientID{}, fmt.Errorf("failed to generate client id: %v", err)
	}

	_, err = tx.Exec(
		"INSERT INTO clients (id, name, public_key, last_seen) VALUES (?, ?, ?, ?)",
		id[:], name, publicKey, time.Now().Unix(),
	)
	if err != nil {
		// The UNIQUE constraint also catches a name raced in after the check
		return protocol.ClientID{}, fmt.Errorf("failed to insert client: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return protocol.ClientID{}, fmt.Errorf("failed to commit registration: %v", err)
	}

	log.Printf("Client %q registered with id %x", name, id)
	return id, nil
}

// TouchLastSeen updates a client's last-seen timestamp. Unknown ids are a
// no-op; the id comes straight from the request header and is not verified.
func (d *DB) TouchLastSeen(id protocol.ClientID) error {
	_, err := d.db.Exec("UPDATE clients SET last_seen = ? WHERE id = ?", time.Now().Unix(), id[:])
	if err != nil {
		return fmt.Errorf("failed to update last seen: %v", err)
	}
	return nil
}

// ListClients returns all registered clients in insertion order
func (d *DB) ListClients() ([]ClientRecord, error) {
	rows, err := d.db.Query("SELECT id, name, last_seen FROM clients")
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %v", err)
	}
	defer rows.Close()

	var clients []ClientRecord
	for rows.Next() {
		var rec ClientRecord
		var id []byte
		if err := rows.Scan(&id, &rec.Name, &rec.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan client: %v", err)
		}
		copy(rec.ID[:], id)
		clients = append(clients, rec)
	}

	return clients, rows.Err()
}

// PublicKey returns the stored public key of a client, or ErrNotFound
func (d *DB) PublicKey(id protocol.ClientID) ([]byte, error) {
	var key []byte
	err := d.db.QueryRow("SELECT public_key FROM clients WHERE id = ?", id[:]).Scan(&key)
	if err != nil {
		return nil, scanErr(err)
	}
	return key, nil
}

// ClientExists reports whether a client id is registered
func (d *DB) ClientExists(id protocol.ClientID) (bool, error) {
	var one int
	err := d.db.QueryRow("SELECT 1 FROM clients WHERE id = ?", id[:]).Scan(&one)
	if err != nil {
		if scanErr(err) == ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check client: %v", err)
	}
	return true, nil
}
