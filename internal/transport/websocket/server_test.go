package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return conn
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, 1)
	}))
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	connections, exists := hub.connections[1]
	hub.mu.RUnlock()

	if !exists {
		t.Fatal("connection should be registered")
	}
	if len(connections) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(connections))
	}

	conn.Close()
	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	_, exists = hub.connections[1]
	hub.mu.RUnlock()

	if exists {
		t.Fatal("connection should be unregistered")
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, 1)
	}))
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(1, &Message{
		Type:    "document_progress",
		Channel: "documents#1",
		Data:    map[string]interface{}{"progress": 50},
	})

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	if received.Type != "document_progress" {
		t.Errorf("expected type 'document_progress', got %q", received.Type)
	}
	if received.Channel != "documents#1" {
		t.Errorf("expected channel 'documents#1', got %q", received.Channel)
	}
	if received.UserID != 1 {
		t.Errorf("expected userID 1, got %d", received.UserID)
	}
}

func TestHub_MultipleConnections(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, 1)
	}))
	defer server.Close()

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn := dialHub(t, server)
		conns = append(conns, conn)
		defer conn.Close()
	}

	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	connections, exists := hub.connections[1]
	hub.mu.RUnlock()

	if !exists {
		t.Fatal("connections should be registered")
	}
	if len(connections) != 3 {
		t.Fatalf("expected 3 connections, got %d", len(connections))
	}

	hub.Broadcast(1, &Message{
		Type: "broadcast",
		Data: map[string]interface{}{"test": "data"},
	})

	// every connection of the same user gets the message
	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(idx int, c *websocket.Conn) {
			defer wg.Done()
			c.SetReadDeadline(time.Now().Add(1 * time.Second))
			var received Message
			if err := c.ReadJSON(&received); err != nil {
				t.Errorf("connection %d failed to read message: %v", idx, err)
				return
			}
			if received.Type != "broadcast" {
				t.Errorf("connection %d: expected type 'broadcast', got %q", idx, received.Type)
			}
		}(i, conn)
	}

	wg.Wait()
}

func TestHub_DifferentUsers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := int64(1)
		if r.URL.Query().Get("user_id") == "2" {
			userID = 2
		}
		hub.HandleWebSocket(w, r, userID)
	}))
	defer server.Close()

	wsURL1 := "ws" + server.URL[4:] + "?user_id=1"
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL1, nil)
	if err != nil {
		t.Fatalf("failed to connect user 1: %v", err)
	}
	defer conn1.Close()

	wsURL2 := "ws" + server.URL[4:] + "?user_id=2"
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL2, nil)
	if err != nil {
		t.Fatalf("failed to connect user 2: %v", err)
	}
	defer conn2.Close()

	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(1, &Message{
		Type: "private",
		Data: map[string]interface{}{"test": "data"},
	})

	conn1.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received1 Message
	if err := conn1.ReadJSON(&received1); err != nil {
		t.Fatalf("user 1 failed to read message: %v", err)
	}
	if received1.Type != "private" {
		t.Errorf("user 1: expected type 'private', got %q", received1.Type)
	}

	// user 2 must not see user 1's message
	conn2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var received2 Message
	if err := conn2.ReadJSON(&received2); err == nil {
		t.Error("user 2 should not receive message for user 1")
	}
}

func TestHub_BroadcastChannelFull(t *testing.T) {
	hub := NewHub()
	hub.broadcast = make(chan *Message, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	hub.broadcast <- &Message{Type: "fill"}
	hub.broadcast <- &Message{Type: "fill"}

	// channel is full: the message must be dropped, not block
	hub.Broadcast(1, &Message{Type: "dropped"})

	select {
	case <-time.After(100 * time.Millisecond):
	case msg := <-hub.broadcast:
		if msg.Type == "dropped" {
			t.Error("message should be dropped when channel is full")
		}
	}
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, 1)
	}))
	defer server.Close()

	conn := dialHub(t, server)

	time.Sleep(50 * time.Millisecond)

	// cancelling the hub context closes the underlying connections
	cancel()
	time.Sleep(100 * time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed after hub shutdown")
	}

	conn.Close()
}
