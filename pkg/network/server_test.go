package network

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/messageu/relay-node/pkg/protocol"
	"github.com/messageu/relay-node/pkg/storage"
)

func startTestServer(t *testing.T) *RelayServer {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	rs := NewRelayServer(0, db)
	if err := rs.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Cleanup(func() {
		rs.Stop()
		db.Close()
	})

	return rs
}

func dialServer(t *testing.T, rs *RelayServer) net.Conn {
	t.Helper()

	conn, err := net.Dial("tcp", rs.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func doRequest(t *testing.T, conn net.Conn, id protocol.ClientID, code uint16, payload []byte) (*protocol.ResponseHeader, []byte) {
	t.Helper()

	header := &protocol.RequestHeader{
		ClientID:    id,
		Version:     protocol.ProtocolVersion,
		Code:        code,
		PayloadSize: uint32(len(payload)),
	}

	if _, err := conn.Write(header.Encode()); err != nil {
		t.Fatalf("write header error = %v", err)
	}
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			t.Fatalf("write payload error = %v", err)
		}
	}

	respHeader, respPayload, err := protocol.ReadResponse(conn)
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}

	return respHeader, respPayload
}

func registerOver(t *testing.T, conn net.Conn, name string) protocol.ClientID {
	t.Helper()

	header, payload := doRequest(t, conn, protocol.ClientID{}, protocol.ReqRegister, registrationPayload(name))
	if header.Code != protocol.ResRegistrationSuccess {
		t.Fatalf("registration of %q failed with code %d", name, header.Code)
	}

	var id protocol.ClientID
	copy(id[:], payload)
	return id
}

func TestServerRegisterAndList(t *testing.T) {
	rs := startTestServer(t)
	conn := dialServer(t, rs)

	aliceID := registerOver(t, conn, "alice")
	bobID := registerOver(t, conn, "bob")

	if aliceID == bobID {
		t.Fatal("two registrations issued the same id")
	}

	header, payload := doRequest(t, conn, aliceID, protocol.ReqClientList, nil)
	if header.Code != protocol.ResClientList {
		t.Fatalf("Code = %d, want %d", header.Code, protocol.ResClientList)
	}

	entrySize := protocol.ClientIDSize + protocol.NameFieldSize
	if len(payload) != 2*entrySize {
		t.Errorf("payload length = %d, want %d", len(payload), 2*entrySize)
	}
}

func TestServerSendAndPoll(t *testing.T) {
	rs := startTestServer(t)

	aliceConn := dialServer(t, rs)
	bobConn := dialServer(t, rs)

	aliceID := registerOver(t, aliceConn, "alice")
	bobID := registerOver(t, bobConn, "bob")

	contents := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, c := range contents {
		header, _ := doRequest(t, aliceConn, aliceID, protocol.ReqSendMessage,
			sendMessagePayload(bobID, protocol.MsgTypeText, c))
		if header.Code != protocol.ResMessageSent {
			t.Fatalf("send failed with code %d", header.Code)
		}
	}

	header, payload := doRequest(t, bobConn, bobID, protocol.ReqWaitingMessages, nil)
	if header.Code != protocol.ResWaitingMessages {
		t.Fatalf("poll failed with code %d", header.Code)
	}

	var lastID uint32
	var count int
	for len(payload) > 0 {
		mi := &protocol.MessageInfo{}
		n, err := mi.Decode(payload)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}

		if mi.From != aliceID {
			t.Error("sender id mismatch")
		}
		if !bytes.Equal(mi.Content, contents[count]) {
			t.Errorf("message %d content = %q, want %q", count, mi.Content, contents[count])
		}
		if mi.ID <= lastID {
			t.Errorf("ids not ascending: %d after %d", mi.ID, lastID)
		}

		lastID = mi.ID
		count++
		payload = payload[n:]
	}

	if count != len(contents) {
		t.Fatalf("received %d messages, want %d", count, len(contents))
	}

	// Immediately polling again returns nothing
	header, payload = doRequest(t, bobConn, bobID, protocol.ReqWaitingMessages, nil)
	if header.Code != protocol.ResWaitingMessages {
		t.Fatalf("second poll failed with code %d", header.Code)
	}
	if len(payload) != 0 {
		t.Errorf("second poll payload length = %d, want 0", len(payload))
	}
}

func TestServerSendToUnknownRecipient(t *testing.T) {
	rs := startTestServer(t)
	conn := dialServer(t, rs)

	aliceID := registerOver(t, conn, "alice")
	unknown, _ := protocol.GenerateClientID()

	header, _ := doRequest(t, conn, aliceID, protocol.ReqSendMessage,
		sendMessagePayload(unknown, protocol.MsgTypeText, []byte("void")))
	if header.Code != protocol.ResGeneralError {
		t.Errorf("Code = %d, want %d", header.Code, protocol.ResGeneralError)
	}
}

func TestServerUnknownCodeKeepsConnectionAlive(t *testing.T) {
	rs := startTestServer(t)
	conn := dialServer(t, rs)

	aliceID := registerOver(t, conn, "alice")

	header, _ := doRequest(t, conn, aliceID, 777, nil)
	if header.Code != protocol.ResGeneralError {
		t.Errorf("Code = %d, want %d", header.Code, protocol.ResGeneralError)
	}

	// Same connection must still serve valid requests
	header, _ = doRequest(t, conn, aliceID, protocol.ReqClientList, nil)
	if header.Code != protocol.ResClientList {
		t.Errorf("follow-up Code = %d, want %d", header.Code, protocol.ResClientList)
	}
}

func TestServerExitClosesConnection(t *testing.T) {
	rs := startTestServer(t)
	conn := dialServer(t, rs)

	aliceID := registerOver(t, conn, "alice")

	exitHeader := &protocol.RequestHeader{
		ClientID: aliceID,
		Version:  protocol.ProtocolVersion,
		Code:     protocol.ReqExit,
	}
	if _, err := conn.Write(exitHeader.Encode()); err != nil {
		t.Fatalf("write error = %v", err)
	}

	// No response is sent; the server closes its end
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("post-exit read error = %v, want io.EOF", err)
	}
}

func TestServerMalformedRequestDoesNotAffectOthers(t *testing.T) {
	rs := startTestServer(t)

	badConn := dialServer(t, rs)
	goodConn := dialServer(t, rs)

	// Undersized registration payload from one connection
	header, _ := doRequest(t, badConn, protocol.ClientID{}, protocol.ReqRegister, make([]byte, 10))
	if header.Code != protocol.ResGeneralError {
		t.Errorf("Code = %d, want %d", header.Code, protocol.ResGeneralError)
	}

	// The other connection keeps working
	registerOver(t, goodConn, "alice")
}

func TestServerConcurrentRegistrations(t *testing.T) {
	rs := startTestServer(t)

	const workers = 4
	ids := make([]protocol.ClientID, workers)
	codes := make([]uint16, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			conn, err := net.Dial("tcp", rs.Addr().String())
			if err != nil {
				return
			}
			defer conn.Close()

			header := &protocol.RequestHeader{
				Version:     protocol.ProtocolVersion,
				Code:        protocol.ReqRegister,
				PayloadSize: protocol.RegistrationPayloadSize,
			}
			if _, err := conn.Write(header.Encode()); err != nil {
				return
			}
			if _, err := conn.Write(registrationPayload(fmt.Sprintf("client-%d", i))); err != nil {
				return
			}

			respHeader, respPayload, err := protocol.ReadResponse(conn)
			if err != nil {
				return
			}

			codes[i] = respHeader.Code
			copy(ids[i][:], respPayload)
		}(i)
	}
	wg.Wait()

	seen := make(map[protocol.ClientID]bool)
	for i := 0; i < workers; i++ {
		if codes[i] != protocol.ResRegistrationSuccess {
			t.Fatalf("worker %d got code %d, want %d", i, codes[i], protocol.ResRegistrationSuccess)
		}
		if seen[ids[i]] {
			t.Errorf("worker %d received a duplicate id", i)
		}
		seen[ids[i]] = true
	}
}

func TestServerStats(t *testing.T) {
	rs := startTestServer(t)
	conn := dialServer(t, rs)

	aliceID := registerOver(t, conn, "alice")
	doRequest(t, conn, aliceID, protocol.ReqSendMessage,
		sendMessagePayload(aliceID, protocol.MsgTypeText, []byte("note to self")))

	stats := rs.GetStats()

	if got := stats["registered_clients"]; got != 1 {
		t.Errorf("registered_clients = %v, want 1", got)
	}
	if got := stats["queued_messages"]; got != 1 {
		t.Errorf("queued_messages = %v, want 1", got)
	}
	if got := stats["messages_relayed"]; got != uint64(1) {
		t.Errorf("messages_relayed = %v, want 1", got)
	}
	if got := stats["requests_handled"]; got != uint64(2) {
		t.Errorf("requests_handled = %v, want 2", got)
	}
}
