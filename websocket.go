package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Acid-Arch/boutiqueclient-sub000/ws"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard clients connect from arbitrary origins on the LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var wsClientSeq int64

// handleEventsWebSocket upgrades the connection and streams hub broadcasts to
// the client. Inbound traffic is only read to detect disconnects and answer
// heartbeats.
func handleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		serverLogger.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	clientID := fmt.Sprintf("client-%d", atomic.AddInt64(&wsClientSeq, 1))
	events := make(chan ws.Message, 10)
	eventHub.Register(clientID, events)
	defer eventHub.Unregister(clientID)

	serverLogger.Info("Event client connected", "client_id", clientID, "remote_addr", r.RemoteAddr)

	done := make(chan struct{})

	// Reader: consume control frames and heartbeats until the peer goes away.
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					serverLogger.Warn("Event client read error", "client_id", clientID, "error", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			var msg ws.Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			if msg.Type == ws.MessageTypeHeartbeat {
				pong := ws.Message{Type: ws.MessageTypePong, Timestamp: time.Now()}
				if data, err := pong.Marshal(); err == nil {
					conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
					conn.WriteMessage(websocket.TextMessage, data)
				}
			}
		}
	}()

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			payload, err := msg.Marshal()
			if err != nil {
				serverLogger.Warn("Failed to marshal event", "client_id", clientID, "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				serverLogger.Info("Event client write failed, disconnecting", "client_id", clientID, "error", err)
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				serverLogger.Info("Event client ping failed, disconnecting", "client_id", clientID, "error", err)
				return
			}
		case <-done:
			serverLogger.Info("Event client disconnected", "client_id", clientID)
			return
		}
	}
}
