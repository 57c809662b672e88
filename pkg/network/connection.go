package network

import (
	"io"
	"log"
	"net"

	"github.com/messageu/relay-node/pkg/protocol"
)

// acceptLoop accepts incoming connections
func (rs *RelayServer) acceptLoop() {
	for {
		conn, err := rs.listener.Accept()
		if err != nil {
			log.Printf("Accept loop ending: %v", err)
			return
		}

		go rs.handleConnection(conn)
	}
}

// handleConnection serves one client connection. Requests are read and
// answered strictly one at a time; no read deadline is set, so an idle peer
// holds its worker until it disconnects.
func (rs *RelayServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	log.Printf("New connection from %s", conn.RemoteAddr())

	for {
		header, err := protocol.ReadRequestHeader(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("Header read error from %s: %v", conn.RemoteAddr(), err)
			}
			break
		}

		payload := make([]byte, header.PayloadSize)
		if _, err := io.ReadFull(conn, payload); err != nil {
			log.Printf("Payload read error from %s: %v", conn.RemoteAddr(), err)
			break
		}

		resp := rs.dispatcher.Dispatch(header, payload)
		rs.requestsHandled.Add(1)

		// Exit request: close without answering
		if resp == nil {
			break
		}

		if resp.Code == protocol.ResMessageSent {
			rs.messagesRelayed.Add(1)
		}

		if err := protocol.WriteResponse(conn, resp.Code, resp.Payload); err != nil {
			log.Printf("Write error to %s: %v", conn.RemoteAddr(), err)
			break
		}
	}

	log.Printf("Connection closed from %s", conn.RemoteAddr())
}
