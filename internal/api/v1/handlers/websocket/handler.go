package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phoebe-ai/phoebe-client/internal/connections"
	"github.com/phoebe-ai/phoebe-client/internal/logger"
	"github.com/phoebe-ai/phoebe-client/internal/services/session"
	"github.com/phoebe-ai/phoebe-client/internal/services/voice"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The daemon only listens on loopback; any local UI may connect.
		return true
	},
}

// HandleUI upgrades a UI client connection. Text frames from the daemon are
// JSON events (transcript updates, voice phases, synthesized audio goes out
// as binary). Binary frames from the client are microphone audio and feed
// the recognition bridge.
func HandleUI(manager *connections.Manager, bridge *voice.AudioBridge, sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error(logger.HANDLER, "Failed to upgrade websocket: %v", err)
		return
	}

	manager.AddConnection(conn)
	defer func() {
		manager.RemoveConnection(conn)
		conn.Close()
	}()

	timeouts := manager.GetTimeouts()

	conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(timeouts.PingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(timeouts.WriteWait)
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Initial snapshot so a reconnecting UI catches up immediately.
	snapshot, err := json.Marshal(map[string]interface{}{
		"type":     "transcript",
		"messages": sessionService.Transcript().Messages(),
	})
	if err == nil {
		if err := manager.WriteTo(conn, snapshot); err != nil {
			return
		}
	}

	for {
		conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn(logger.HANDLER, "UI websocket closed unexpectedly: %v", err)
			}
			break
		}

		if messageType == websocket.BinaryMessage {
			// Microphone audio; drops are fine, recognition survives gaps.
			if _, err := bridge.Write(message); err != nil {
				break
			}
		}
	}
}
