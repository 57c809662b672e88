package network

import (
	"encoding/binary"
	"errors"
	"log"

	"github.com/messageu/relay-node/pkg/protocol"
	"github.com/messageu/relay-node/pkg/storage"
)

var (
	errUnknownCode      = errors.New("unknown request code")
	errEmptyName        = errors.New("empty registration name")
	errUnknownRecipient = errors.New("recipient does not exist")
)

// Store is the persistence contract the dispatcher needs. Implemented by
// *storage.DB; every operation is its own transaction.
type Store interface {
	RegisterClient(name string, publicKey []byte) (protocol.ClientID, error)
	TouchLastSeen(id protocol.ClientID) error
	ListClients() ([]storage.ClientRecord, error)
	PublicKey(id protocol.ClientID) ([]byte, error)
	ClientExists(id protocol.ClientID) (bool, error)
	EnqueueMessage(to, from protocol.ClientID, msgType uint8, content []byte) (uint32, error)
	DrainMessages(to protocol.ClientID) ([]protocol.MessageInfo, error)
}

// Response is a fully formed reply ready for the wire
type Response struct {
	Code    uint16
	Payload []byte
}

// Dispatcher executes decoded requests against the store
type Dispatcher struct {
	store Store
}

// NewDispatcher creates a dispatcher over a store
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Dispatch runs one request and returns the response to write back, or nil
// for an exit request. Framing, domain and internal failures all collapse
// to the general-error response at this boundary; the distinguishing cause
// is logged and never reaches the peer.
func (d *Dispatcher) Dispatch(header *protocol.RequestHeader, payload []byte) *Response {
	resp, err := d.dispatch(header, payload)
	if err != nil {
		log.Printf("Request %d from %x failed: %v", header.Code, header.ClientID, err)
		return &Response{Code: protocol.ResGeneralError}
	}

	if resp == nil {
		log.Printf("Exit request from %x", header.ClientID)
		return nil
	}

	log.Printf("Request %d from %x handled, response %d (%d bytes)",
		header.Code, header.ClientID, resp.Code, len(resp.Payload))
	return resp
}

func (d *Dispatcher) dispatch(header *protocol.RequestHeader, payload []byte) (*Response, error) {
	switch header.Code {
	case protocol.ReqRegister:
		return d.handleRegister(payload)
	case protocol.ReqClientList:
		return d.handleClientList(header.ClientID)
	case protocol.ReqPublicKey:
		return d.handlePublicKey(header.ClientID, payload)
	case protocol.ReqSendMessage:
		return d.handleSendMessage(header.ClientID, payload)
	case protocol.ReqWaitingMessages:
		return d.handleWaitingMessages(header.ClientID)
	case protocol.ReqExit:
		return nil, nil
	default:
		return nil, errUnknownCode
	}
}

// handleRegister registers a new client. Registration is the one request
// that carries no usable sender id, so last-seen is not touched.
func (d *Dispatcher) handleRegister(payload []byte) (*Response, error) {
	reg, err := protocol.DecodeRegistration(payload)
	if err != nil {
		return nil, err
	}

	if reg.Name == "" {
		return nil, errEmptyName
	}

	id, err := d.store.RegisterClient(reg.Name, reg.PublicKey[:])
	if err != nil {
		return nil, err
	}

	return &Response{Code: protocol.ResRegistrationSuccess, Payload: id[:]}, nil
}

func (d *Dispatcher) handleClientList(clientID protocol.ClientID) (*Response, error) {
	if err := d.store.TouchLastSeen(clientID); err != nil {
		return nil, err
	}

	clients, err := d.store.ListClients()
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, len(clients)*(protocol.ClientIDSize+protocol.NameFieldSize))
	for _, c := range clients {
		ci := protocol.ClientInfo{ID: c.ID, Name: c.Name}
		payload = append(payload, ci.Encode()...)
	}

	return &Response{Code: protocol.ResClientList, Payload: payload}, nil
}

func (d *Dispatcher) handlePublicKey(clientID protocol.ClientID, payload []byte) (*Response, error) {
	if err := d.store.TouchLastSeen(clientID); err != nil {
		return nil, err
	}

	if len(payload) < protocol.ClientIDSize {
		return nil, protocol.ErrShortPayload
	}

	var target protocol.ClientID
	copy(target[:], payload[:protocol.ClientIDSize])

	key, err := d.store.PublicKey(target)
	if err != nil {
		return nil, err
	}

	resp := make([]byte, 0, protocol.ClientIDSize+len(key))
	resp = append(resp, target[:]...)
	resp = append(resp, key...)

	return &Response{Code: protocol.ResPublicKey, Payload: resp}, nil
}

func (d *Dispatcher) handleSendMessage(from protocol.ClientID, payload []byte) (*Response, error) {
	if err := d.store.TouchLastSeen(from); err != nil {
		return nil, err
	}

	msg, err := protocol.DecodeSendMessage(payload)
	if err != nil {
		return nil, err
	}

	// Existence check and insert are separate store calls; with no client
	// deletion path the gap between them is unobservable
	exists, err := d.store.ClientExists(msg.To)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errUnknownRecipient
	}

	msgID, err := d.store.EnqueueMessage(msg.To, from, msg.Type, msg.Content)
	if err != nil {
		return nil, err
	}

	resp := make([]byte, protocol.ClientIDSize+4)
	copy(resp, msg.To[:])
	binary.LittleEndian.PutUint32(resp[protocol.ClientIDSize:], msgID)

	return &Response{Code: protocol.ResMessageSent, Payload: resp}, nil
}

func (d *Dispatcher) handleWaitingMessages(clientID protocol.ClientID) (*Response, error) {
	if err := d.store.TouchLastSeen(clientID); err != nil {
		return nil, err
	}

	messages, err := d.store.DrainMessages(clientID)
	if err != nil {
		return nil, err
	}

	var payload []byte
	for i := range messages {
		payload = append(payload, messages[i].Encode()...)
	}

	return &Response{Code: protocol.ResWaitingMessages, Payload: payload}, nil
}
