package storage

import (
	"fmt"
	"log"

	"github.com/messageu/relay-node/pkg/protocol"
)

// EnqueueMessage stores a message for later pickup and returns its id.
// Recipient existence is the caller's concern; the queue accepts any id.
func (d *DB) EnqueueMessage(to, from protocol.ClientID, msgType uint8, content []byte) (uint32, error) {
	result, err := d.db.Exec(
		"INSERT INTO messages (to_client, from_client, type, content) VALUES (?, ?, ?, ?)",
		to[:], from[:], msgType, content,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue message: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read message id: %v", err)
	}

	log.Printf("Message %d queued from %x to %x (%d bytes)", id, from, to, len(content))
	return uint32(id), nil
}

// DrainMessages returns all messages queued for a recipient in ascending id
// order and deletes them in the same transaction. Draining an empty queue
// returns an empty slice and deletes nothing.
func (d *DB) DrainMessages(to protocol.ClientID) ([]protocol.MessageInfo, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin drain: %v", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		"SELECT id, from_client, type, content FROM messages WHERE to_client = ? ORDER BY id",
		to[:],
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %v", err)
	}

	var messages []protocol.MessageInfo
	var lastID uint32
	for rows.Next() {
		var mi protocol.MessageInfo
		var from, content []byte
		if err := rows.Scan(&mi.ID, &from, &mi.Type, &content); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan message: %v", err)
		}
		copy(mi.From[:], from)
		mi.Content = content
		lastID = mi.ID
		messages = append(messages, mi)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read messages: %v", err)
	}
	rows.Close()

	if len(messages) == 0 {
		return nil, nil
	}

	// Delete only what was read; anything enqueued later keeps its place
	_, err = tx.Exec("DELETE FROM messages WHERE to_client = ? AND id <= ?", to[:], lastID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete drained messages: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit drain: %v", err)
	}

	log.Printf("Drained %d messages for %x", len(messages), to)
	return messages, nil
}
