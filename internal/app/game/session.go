/*
This file defines the Session struct, representing one active WebSocket
connection. It owns the connection's read/write loops and the buffered send
queue; all game-visible session state (identity, room membership) is owned by
the hub's mutation stream and only touched there.
*/
package game

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mafiagame/internal/app/store"
	"mafiagame/internal/pkg/errs"
	"mafiagame/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the session was replaced by a new connection.
	WsCloseCodeSessionKicked = 4001
)

// Session represents an active WebSocket connection and, once authenticated,
// the identity bound to it.
type Session struct {
	// owning hub.
	hub *Hub

	// underlying WebSocket connection object. Nil in tests that exercise the
	// hub without a transport.
	conn *websocket.Conn

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// guards against double-closing the send channel.
	closeOnce sync.Once

	// close frame data written by WritePump once the send channel closes.
	// Set (at most once) before closeSend; the channel close publishes it.
	closeCode   int
	closeReason string

	// structured logger with connection context.
	logger zerolog.Logger

	// identity bound to this connection; nil until login succeeds.
	// Owned by the hub's mutation stream.
	user *store.User

	// ID of the room this session is attached to, or "".
	// Owned by the hub's mutation stream.
	roomID string
}

// NewSession constructs a Session for a freshly accepted connection.
func NewSession(hub *Hub, wsConn *websocket.Conn, remoteAddr string) *Session {
	sessionLogger := logx.Component("session").With().
		Str("remote_addr", remoteAddr).
		Logger()

	return &Session{
		hub:    hub,
		conn:   wsConn,
		send:   make(chan []byte, 256),
		logger: sessionLogger,
	}
}

// nickname returns the bound identity, or "" when unauthenticated.
func (s *Session) nickname() string {
	if s.user == nil {
		return ""
	}

	return s.user.Nickname
}

// ReadPump handles reading messages from the WebSocket connection.
// It handles heartbeats (Pong), hands frames to the hub, and triggers cleanup
// upon connection closure.
func (s *Session) ReadPump() {
	defer s.cleanupOnDisconnect()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			break
		}

		s.hub.HandleInbound(s, messageBytes)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the session's
// ReadPump terminates.
func (s *Session) cleanupOnDisconnect() {
	s.logger.Info().Msg("Session connection cleanup starting.")

	s.hub.Disconnect(s)

	if err := s.conn.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Session connection close error")
	}
}

// WritePump handles writing messages from the Session.send channel to the
// WebSocket connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := s.conn.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Session connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-s.send:
			if !s.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !s.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles messages pulled from the send channel, writing
// them to the WebSocket. Returns true if the WritePump loop should continue.
func (s *Session) writeQueuedMessage(message []byte, ok bool) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		closeMessage := []byte{}
		if s.closeCode != 0 {
			closeMessage = websocket.FormatCloseMessage(s.closeCode, s.closeReason)
		}
		if err := s.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
			s.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		s.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the
// connection heartbeat. Returns false if the WritePump loop should terminate.
func (s *Session) writePingMessage() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// queueRaw attempts to enqueue pre-marshaled bytes for delivery, dropping the
// message when the queue is full. A full queue means the client has stalled;
// the read deadline will reap the connection soon after.
func (s *Session) queueRaw(messageBytes []byte) {
	select {
	case s.send <- messageBytes:
	default:
		s.logger.Warn().Int("queue_len", len(s.send)).Msg("Session send channel full, dropping message")
	}
}

// sendEvent marshals an outbound event and queues it for delivery.
func (s *Session) sendEvent(event any) {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error marshaling event for session")
		return
	}

	s.queueRaw(messageBytes)
}

// sendError delivers a structured error event to the client.
func (s *Session) sendError(err error) {
	code := errs.ErrUnknown
	message := fmt.Sprintf("Internal server error: %v", err)

	if customErr, ok := err.(*errs.CustomError); ok {
		code = customErr.Code
		message = customErr.Message
	}

	s.sendEvent(errorEvent{Type: evtError, Code: code, Message: message})
}

// closeSend shuts the send queue, causing WritePump to write a close frame and
// terminate the connection.
func (s *Session) closeSend() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}

// Kick gracefully closes the session's connection with a custom close frame
// (Code 4001) indicating that the session was replaced. The frame is handed
// to WritePump through the send queue close, keeping WritePump the sole
// writer on the connection.
func (s *Session) Kick(reason string) {
	s.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Kicking session.")

	s.closeOnce.Do(func() {
		s.closeCode = WsCloseCodeSessionKicked
		s.closeReason = reason
		close(s.send)
	})
}
