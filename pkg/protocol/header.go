package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	ErrShortHeader  = errors.New("request header too short")
	ErrShortPayload = errors.New("payload too short")
)

// RequestHeader represents the fixed request header sent by clients.
// All multi-byte integers are little-endian.
type RequestHeader struct {
	ClientID    ClientID // Sender id (unverified, taken as declared)
	Version     uint8    // Protocol version
	Code        uint16   // Request code
	PayloadSize uint32   // Payload length in bytes
}

// Encode encodes the request header to bytes
func (h *RequestHeader) Encode() []byte {
	buf := make([]byte, RequestHeaderSize)

	copy(buf[0:16], h.ClientID[:])
	buf[16] = h.Version
	binary.LittleEndian.PutUint16(buf[17:19], h.Code)
	binary.LittleEndian.PutUint32(buf[19:23], h.PayloadSize)

	return buf
}

// Decode decodes the request header from bytes
func (h *RequestHeader) Decode(buf []byte) error {
	if len(buf) < RequestHeaderSize {
		return ErrShortHeader
	}

	copy(h.ClientID[:], buf[0:16])
	h.Version = buf[16]
	h.Code = binary.LittleEndian.Uint16(buf[17:19])
	h.PayloadSize = binary.LittleEndian.Uint32(buf[19:23])

	return nil
}

// ResponseHeader represents the fixed response header. Responses carry no
// client id; they are addressed to the connection they were produced on.
type ResponseHeader struct {
	Version     uint8
	Code        uint16
	PayloadSize uint32
}

// Encode encodes the response header to bytes
func (h *ResponseHeader) Encode() []byte {
	buf := make([]byte, ResponseHeaderSize)

	buf[0] = h.Version
	binary.LittleEndian.PutUint16(buf[1:3], h.Code)
	binary.LittleEndian.PutUint32(buf[3:7], h.PayloadSize)

	return buf
}

// Decode decodes the response header from bytes
func (h *ResponseHeader) Decode(buf []byte) error {
	if len(buf) < ResponseHeaderSize {
		return ErrShortHeader
	}

	h.Version = buf[0]
	h.Code = binary.LittleEndian.Uint16(buf[1:3])
	h.PayloadSize = binary.LittleEndian.Uint32(buf[3:7])

	return nil
}

// ReadRequestHeader reads a request header from an io.Reader
func ReadRequestHeader(r io.Reader) (*RequestHeader, error) {
	buf := make([]byte, RequestHeaderSize)

	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	header := &RequestHeader{}
	if err := header.Decode(buf); err != nil {
		return nil, err
	}

	return header, nil
}

// WriteResponse writes a response header followed by its payload
func WriteResponse(w io.Writer, code uint16, payload []byte) error {
	header := &ResponseHeader{
		Version:     ProtocolVersion,
		Code:        code,
		PayloadSize: uint32(len(payload)),
	}

	if _, err := w.Write(header.Encode()); err != nil {
		return err
	}

	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}

	return nil
}

// ReadResponse reads a response header and its payload from an io.Reader.
// Used by clients and tests; the relay itself only writes responses.
func ReadResponse(r io.Reader) (*ResponseHeader, []byte, error) {
	buf := make([]byte, ResponseHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, err
	}

	header := &ResponseHeader{}
	if err := header.Decode(buf); err != nil {
		return nil, nil, err
	}

	payload := make([]byte, header.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, err
	}

	return header, payload, nil
}
