package protocol

import (
	"bytes"
	"encoding/binary"
)

// RegistrationPayload represents a decoded registration request payload
type RegistrationPayload struct {
	Name      string
	PublicKey [PublicKeySize]byte
}

// DecodeRegistration decodes a registration payload: a zero-terminated name
// field followed by the client's public key. Name bytes past the first NUL
// are ignored; non-ASCII bytes are passed through as-is.
func DecodeRegistration(buf []byte) (*RegistrationPayload, error) {
	if len(buf) < RegistrationPayloadSize {
		return nil, ErrShortPayload
	}

	p := &RegistrationPayload{
		Name: decodeName(buf[:NameFieldSize]),
	}
	copy(p.PublicKey[:], buf[NameFieldSize:RegistrationPayloadSize])

	return p, nil
}

// SendMessagePayload represents a decoded send-message request payload
type SendMessagePayload struct {
	To      ClientID
	Type    uint8
	Content []byte
}

// DecodeSendMessage decodes a send-message payload: recipient id, type tag,
// content size and content. Content shorter than the declared size is
// truncated to the bytes actually present.
func DecodeSendMessage(buf []byte) (*SendMessagePayload, error) {
	if len(buf) < SendMessageFixedSize {
		return nil, ErrShortPayload
	}

	p := &SendMessagePayload{}
	copy(p.To[:], buf[0:ClientIDSize])
	p.Type = buf[ClientIDSize]

	contentSize := binary.LittleEndian.Uint32(buf[ClientIDSize+1 : SendMessageFixedSize])
	content := buf[SendMessageFixedSize:]
	if uint64(contentSize) < uint64(len(content)) {
		content = content[:contentSize]
	}

	p.Content = make([]byte, len(content))
	copy(p.Content, content)

	return p, nil
}

// ClientInfo represents one entry of a client-list response payload
type ClientInfo struct {
	ID   ClientID
	Name string
}

// Encode encodes the entry: id followed by the name right-padded with zero
// bytes to the full field width. Names longer than the field keep room for
// the terminator.
func (ci *ClientInfo) Encode() []byte {
	buf := make([]byte, ClientIDSize+NameFieldSize)
	copy(buf[0:ClientIDSize], ci.ID[:])
	copy(buf[ClientIDSize:], encodeName(ci.Name))
	return buf
}

// Decode decodes a client-list entry from bytes
func (ci *ClientInfo) Decode(buf []byte) error {
	if len(buf) < ClientIDSize+NameFieldSize {
		return ErrShortPayload
	}

	copy(ci.ID[:], buf[0:ClientIDSize])
	ci.Name = decodeName(buf[ClientIDSize : ClientIDSize+NameFieldSize])

	return nil
}

// MessageInfo represents one entry of a waiting-messages response payload
type MessageInfo struct {
	From    ClientID
	ID      uint32
	Type    uint8
	Content []byte
}

// Encode encodes the entry: sender id, message id, type tag, content size
// and content
func (mi *MessageInfo) Encode() []byte {
	buf := make([]byte, ClientIDSize+4+1+4+len(mi.Content))
	offset := 0

	copy(buf[offset:], mi.From[:])
	offset += ClientIDSize

	binary.LittleEndian.PutUint32(buf[offset:], mi.ID)
	offset += 4

	buf[offset] = mi.Type
	offset++

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(mi.Content)))
	offset += 4

	copy(buf[offset:], mi.Content)

	return buf
}

// Decode decodes a waiting-messages entry from bytes and returns the number
// of bytes consumed, so concatenated entries can be walked in sequence.
func (mi *MessageInfo) Decode(buf []byte) (int, error) {
	const fixed = ClientIDSize + 4 + 1 + 4
	if len(buf) < fixed {
		return 0, ErrShortPayload
	}

	copy(mi.From[:], buf[0:ClientIDSize])
	mi.ID = binary.LittleEndian.Uint32(buf[ClientIDSize : ClientIDSize+4])
	mi.Type = buf[ClientIDSize+4]

	contentSize := binary.LittleEndian.Uint32(buf[ClientIDSize+5 : fixed])
	if uint64(len(buf)) < uint64(fixed)+uint64(contentSize) {
		return 0, ErrShortPayload
	}

	mi.Content = make([]byte, contentSize)
	copy(mi.Content, buf[fixed:fixed+int(contentSize)])

	return fixed + int(contentSize), nil
}

// encodeName packs a name into the fixed-width zero-padded wire field
func encodeName(name string) []byte {
	buf := make([]byte, NameFieldSize)
	n := copy(buf, name)
	if n > MaxNameLen {
		// Keep the terminator even for oversized names
		buf[MaxNameLen] = 0
	}
	return buf
}

// decodeName unpacks a name from the wire field: bytes up to the first NUL
func decodeName(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}
