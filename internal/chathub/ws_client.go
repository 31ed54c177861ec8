package chathub

import (
	"anonchat/backend/internal/models"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	frameTimeout   = 10 * time.Second
	sendBuffer     = 256
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	Pseudonym string
	Conn      *websocket.Conn
	Hub       *ManagerService
	Send      chan models.Notification

	closeOnce sync.Once
}

func NewWebSocketClient(pseudonym string, conn *websocket.Conn, hub *ManagerService) *WebSocketClient {
	return &WebSocketClient{
		Pseudonym: pseudonym,
		Conn:      conn,
		Hub:       hub,
		Send:      make(chan models.Notification, sendBuffer),
	}
}

func (c *WebSocketClient) GetUserID() string                           { return c.Pseudonym }
func (c *WebSocketClient) GetSendChannel() chan<- models.Notification { return c.Send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.Log.Warn("websocket read failed", zap.String("pseudonym", c.Pseudonym), zap.Error(err))
			}
			break
		}

		var frame models.ChatMessage
		if err := json.Unmarshal(message, &frame); err != nil {
			c.Hub.Log.Debug("invalid frame", zap.String("pseudonym", c.Pseudonym), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
		if _, err := c.Hub.HandleFrame(ctx, c.Pseudonym, frame); err != nil {
			c.Hub.Log.Error("failed to handle frame",
				zap.String("pseudonym", c.Pseudonym),
				zap.String("type", frame.Type),
				zap.Error(err))
		}
		cancel()
	}
}

// writePump читає повідомлення з каналу Send і записує їх у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case n, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(FrameFor(n)); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// FrameFor renders a notification as the JSON frame web clients read.
func FrameFor(n models.Notification) models.ChatMessage {
	return models.ChatMessage{
		Type:    string(n.Type),
		RoomID:  n.RoomID,
		Content: n.Text,
	}
}
