// Package protocol implements the MessageU relay wire protocol.
//
// The protocol package defines the fixed binary request/response framing
// spoken between clients and the relay, plus the payload micro-formats
// carried inside that framing. The relay never interprets message content;
// payload bodies and public keys are opaque byte blobs.
//
// # Request Header Format
//
// Every request starts with a 23-byte header (all integers little-endian):
//   - ClientID (16 bytes): sender id, taken as declared (not authenticated)
//   - Version (1 byte): protocol version (currently 2)
//   - Code (2 bytes): request code
//   - PayloadSize (4 bytes): payload length
//
// # Response Header Format
//
// Every response starts with a 7-byte header:
//   - Version (1 byte)
//   - Code (2 bytes): response code
//   - PayloadSize (4 bytes)
//
// A response carries no client id; it is implicitly addressed to the
// connection it was produced on.
//
// # Request Codes
//
//   - Register (600): register a name and public key, receive a fresh id
//   - ClientList (601): list all registered clients
//   - PublicKey (602): fetch one client's public key
//   - SendMessage (603): queue an opaque message for a recipient
//   - WaitingMessages (604): drain all queued messages for the sender
//   - Exit (0): terminate the connection
//
// # Payload Micro-Formats
//
// Registration: name (255 bytes, NUL-terminated, zero-padded) followed by
// the public key (160 bytes).
//
// Send-message: recipient id (16) + type tag (1) + content size (4) +
// content (variable).
//
// Client-list entries: id (16) + name (255, zero-padded). Entries are
// concatenated with no separator.
//
// Waiting-messages entries: sender id (16) + message id (4) + type tag (1)
// + content size (4) + content. Entries are concatenated in ascending
// message-id order.
//
// # Error Signalling
//
// The relay answers every malformed or failed request with the single
// GeneralError response code (9000) and an empty payload. The cause is
// never reported to the peer.
package protocol
