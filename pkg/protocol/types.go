package protocol

import (
	"crypto/rand"
)

// Protocol constants
const (
	// Protocol version (fixed, not negotiated)
	ProtocolVersion uint8 = 2

	// Request header: client id + version + code + payload size
	RequestHeaderSize = ClientIDSize + 1 + 2 + 4

	// Response header: version + code + payload size
	ResponseHeaderSize = 1 + 2 + 4

	// Field sizes
	ClientIDSize  = 16
	NameFieldSize = 255
	MaxNameLen    = NameFieldSize - 1
	PublicKeySize = 160

	// Registration payload: name field + public key
	RegistrationPayloadSize = NameFieldSize + PublicKeySize

	// Fixed prefix of a send-message payload: recipient id + type + content size
	SendMessageFixedSize = ClientIDSize + 1 + 4
)

// Request codes
const (
	ReqRegister        uint16 = 600
	ReqClientList      uint16 = 601
	ReqPublicKey       uint16 = 602
	ReqSendMessage     uint16 = 603
	ReqWaitingMessages uint16 = 604
	ReqExit            uint16 = 0
)

// Response codes
const (
	ResRegistrationSuccess uint16 = 2100
	ResClientList          uint16 = 2101
	ResPublicKey           uint16 = 2102
	ResMessageSent         uint16 = 2103
	ResWaitingMessages     uint16 = 2104
	ResGeneralError        uint16 = 9000
)

// Message type tags. Opaque to the relay, interpreted only by clients.
const (
	MsgTypeSymKeyRequest uint8 = 1
	MsgTypeSymKeySend    uint8 = 2
	MsgTypeText          uint8 = 3
	MsgTypeFile          uint8 = 4
)

// ClientID represents a unique client identifier (16 bytes)
type ClientID [ClientIDSize]byte

// GenerateClientID generates a random client ID using crypto/rand
func GenerateClientID() (ClientID, error) {
	var id ClientID
	if _, err := rand.Read(id[:]); err != nil {
		return ClientID{}, err
	}
	return id, nil
}

// IsZeroID checks if a client ID is all zero
func IsZeroID(id ClientID) bool {
	zero := ClientID{}
	return id == zero
}
