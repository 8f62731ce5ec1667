package internal

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendQueueDepth = 256
)

// Session wraps a single websocket connection: an opaque id, a buffered send
// queue, the display name fixed at the first join, and the current room.
// The room pointer is owned by the hub and only touched under its mutex.
// sendMu serializes every send and the close of the send queue: the hub can
// drop the session while its own reader is still mid-dispatch, so the two
// sides must never race on the channel.
type Session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	name string
	room *Room

	sendMu sync.Mutex
	closed bool
}

func newSession(id string, conn *websocket.Conn) *Session {
	return &Session{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendQueueDepth),
	}
}

// ID returns the opaque session identifier.
func (session *Session) ID() string {
	return session.id
}

// close shuts the send queue exactly once. Both the hub (dropping a slow
// member) and the disconnect path call it.
func (session *Session) close() {
	session.sendMu.Lock()
	defer session.sendMu.Unlock()
	if session.closed {
		return
	}
	session.closed = true
	close(session.send)
}

// enqueue hands a frame to the write pump without blocking; a full or
// already-closed queue means the frame is dropped for this session.
func (session *Session) enqueue(payload []byte) bool {
	session.sendMu.Lock()
	defer session.sendMu.Unlock()
	if session.closed {
		return false
	}
	select {
	case session.send <- payload:
		return true
	default:
		return false
	}
}

func (session *Session) readPump(server *Server) {
	defer func() {
		server.disconnect(session)
		session.conn.Close()
	}()
	session.conn.SetReadLimit(server.readLimit())
	_ = session.conn.SetReadDeadline(time.Now().Add(pongWait))
	session.conn.SetPongHandler(func(string) error {
		return session.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := session.conn.ReadMessage()
		if err != nil {
			// read error ends the loop so the deferred cleanup can fire.
			break
		}
		server.dispatch(session, payload)
	}
}

func (session *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		session.conn.Close()
	}()
	for {
		select {
		case message, ok := <-session.send:
			_ = session.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = session.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := session.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = session.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := session.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
