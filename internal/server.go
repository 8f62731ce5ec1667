package internal

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ghostchat/internal/storage"
)

// systemUser authors join notices, matching the persona clients expect.
const systemUser = "GHOST\U0001F480"

const (
	connLimitBurst  = 30
	connLimitWindow = time.Minute
	recordTimeout   = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type eventHandler func(*Session, json.RawMessage)

// Server is the event router. It owns the hub, the transfer registry, and
// the ambient services, and is the only component that knows the wire shape.
type Server struct {
	hub         *Hub
	transfers   *TransferRegistry
	metrics     *Metrics
	presence    *PresenceTracker
	connLimiter *RateLimiter
	store       *storage.Store
	handlers    map[string]eventHandler
	maxFileSize int64
}

// NewServer wires the router. store may be nil to disable the transfer log;
// maxFileSize <= 0 falls back to MaxTransferSize.
func NewServer(store *storage.Store, maxFileSize int64) *Server {
	if maxFileSize <= 0 {
		maxFileSize = MaxTransferSize
	}
	server := &Server{
		hub:         NewHub(),
		transfers:   NewTransferRegistry(maxFileSize),
		metrics:     NewMetrics(),
		presence:    NewPresenceTracker(),
		connLimiter: NewRateLimiter(connLimitBurst, connLimitWindow),
		store:       store,
		maxFileSize: maxFileSize,
	}
	server.handlers = map[string]eventHandler{
		EventJoinRoom:          server.handleJoinRoom,
		EventChatMessage:       server.handleChatMessage,
		EventStartFileTransfer: server.handleStartFileTransfer,
		EventFileChunk:         server.handleFileChunk,
	}
	return server
}

// Hub exposes the room directory for the HTTP probes.
func (s *Server) Hub() *Hub {
	return s.hub
}

// readLimit sizes the inbound frame cap so a maximum-size transfer survives
// base64 expansion plus the json envelope.
func (s *Server) readLimit() int64 {
	return s.maxFileSize + s.maxFileSize/3 + 1024
}

// ServeWS upgrades the request and starts the session pumps. The session
// stays nameless and roomless until its first joinRoom event.
func (s *Server) ServeWS(writer http.ResponseWriter, request *http.Request) {
	if !s.connLimiter.Allow(s.clientIP(request)) {
		http.Error(writer, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	websocketConn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	session := newSession(uuid.NewString(), websocketConn)
	s.metrics.IncConn()

	go session.writePump()
	go session.readPump(s)
}

// dispatch routes one inbound frame to its handler.
func (s *Server) dispatch(session *Session, payload []byte) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Printf("session %s: malformed frame: %v", session.id, err)
		return
	}
	handler, known := s.handlers[envelope.Event]
	if !known {
		log.Printf("session %s: unknown event %q", session.id, envelope.Event)
		return
	}
	handler(session, envelope.Data)
}

// disconnect tears down everything the session owns: room membership,
// in-flight transfers, presence, and the metrics gauge.
func (s *Server) disconnect(session *Session) {
	s.hub.Leave(session)
	if dropped := s.transfers.AbandonSession(session.id); dropped > 0 {
		log.Printf("session %s: abandoned %d transfer(s) on disconnect", session.id, dropped)
	}
	if session.name != "" {
		s.presence.Decrement(session.name)
	}
	s.metrics.DecConn()
	session.close()
}

func (s *Server) handleJoinRoom(session *Session, data json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("session %s: bad joinRoom payload: %v", session.id, err)
		return
	}
	roomKey := strings.TrimSpace(req.Room)
	if roomKey == "" {
		log.Printf("session %s: joinRoom without a room", session.id)
		return
	}
	// the display name is fixed at the first join; later joins keep it.
	if session.name == "" {
		name := strings.TrimSpace(req.UserName)
		if name == "" {
			name = "anonymous"
		}
		session.name = name
		s.presence.Increment(name)
	}
	s.hub.Join(session, roomKey)

	notice := MessageNotice{
		User: systemUser,
		Text: session.name + " has joined the room.",
	}
	payload, err := encodeEvent(EventMessage, notice)
	if err != nil {
		log.Printf("session %s: encode join notice: %v", session.id, err)
		return
	}
	s.hub.Broadcast(roomKey, payload, session)
}

func (s *Server) handleChatMessage(session *Session, data json.RawMessage) {
	var req ChatMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("session %s: bad chatMessage payload: %v", session.id, err)
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		log.Printf("session %s: dropped empty chat message", session.id)
		return
	}
	roomKey := req.Room
	if roomKey == "" {
		roomKey = s.hub.RoomKey(session)
	}
	user := session.name
	if user == "" {
		user = req.UserName
	}
	payload, err := encodeEvent(EventMessage, MessageNotice{User: user, Text: text})
	if err != nil {
		log.Printf("session %s: encode chat message: %v", session.id, err)
		return
	}
	// chat goes to the whole room, sender included.
	s.hub.Broadcast(roomKey, payload, nil)
	s.metrics.IncMessage()
}

func (s *Server) handleStartFileTransfer(session *Session, data json.RawMessage) {
	var req FileTransferRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("session %s: bad start-file-transfer payload: %v", session.id, err)
		return
	}
	roomKey := req.Room
	if roomKey == "" {
		roomKey = s.hub.RoomKey(session)
	}
	userName := session.name
	if userName == "" {
		userName = req.UserName
	}
	id, err := s.transfers.Begin(session.id, roomKey, userName, req.FileName, req.FileSize, req.FileType)
	if err != nil {
		s.sendTransferError(session, err.Error())
		return
	}
	s.sendEvent(session, EventFileTransferReady, FileTransferReady{FileID: id})
}

func (s *Server) handleFileChunk(session *Session, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session %s: chunk processing panic: %v", session.id, r)
			s.sendTransferError(session, "Chunk processing failed")
		}
	}()
	var req FileChunk
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("session %s: bad file-chunk payload: %v", session.id, err)
		s.sendTransferError(session, "Chunk processing failed")
		return
	}
	done, err := s.transfers.AppendChunk(req.FileID, req.Chunk, req.ChunkIndex, req.IsLastChunk)
	if err != nil {
		s.sendTransferError(session, err.Error())
		return
	}
	if done != nil {
		s.broadcastFileMessage(done)
	}
	s.sendEvent(session, EventChunkReceived, ChunkReceived{FileID: req.FileID, ChunkIndex: req.ChunkIndex})
}

func (s *Server) broadcastFileMessage(done *CompletedTransfer) {
	message := FileMessage{
		User:         done.UserName,
		FileName:     done.FileName,
		FileSize:     done.FileSize,
		FileType:     done.FileType,
		FileContent:  done.Content,
		TransferTime: done.Elapsed.Milliseconds(),
	}
	payload, err := encodeEvent(EventFileMessage, message)
	if err != nil {
		log.Printf("encode file message: %v", err)
		return
	}
	s.hub.Broadcast(done.Room, payload, nil)
	s.metrics.IncTransfer(done.ContentSize)

	if s.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			defer cancel()
			if err := s.store.RecordTransfer(ctx, done.Room, done.UserName, done.FileName, done.ContentSize, done.FileType, done.Elapsed.Milliseconds()); err != nil {
				log.Printf("record transfer: %v", err)
			}
		}()
	}
}

func (s *Server) sendEvent(session *Session, event string, payload interface{}) {
	encoded, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("session %s: encode %s: %v", session.id, event, err)
		return
	}
	if !session.enqueue(encoded) {
		log.Printf("session %s: send queue full, dropped %s", session.id, event)
	}
}

// sendTransferError reports a failure to the originating session only.
func (s *Server) sendTransferError(session *Session, reason string) {
	s.metrics.IncTransferError()
	s.sendEvent(session, EventFileTransferError, reason)
}

// HandleRoomExists answers the lightweight room probe without creating the
// room.
func (s *Server) HandleRoomExists(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	if s.hub.Exists(room) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// MetricsHandler exposes the relay counters.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics
}

const recentTransferLimit = 10

type transferDTO struct {
	Room        string    `json:"room"`
	UserName    string    `json:"username"`
	FileName    string    `json:"file_name"`
	SizeBytes   int64     `json:"size_bytes"`
	MimeType    string    `json:"mime_type"`
	TransferMS  int64     `json:"transfer_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

type statsResponse struct {
	Rooms            map[string]int `json:"rooms"`
	OnlineUsers      []string       `json:"online_users"`
	PendingTransfers int            `json:"pending_transfers"`
	TransfersTotal   int64          `json:"transfers_total,omitempty"`
	TransferBytes    int64          `json:"transfer_bytes,omitempty"`
	RecentTransfers  []transferDTO  `json:"recent_transfers,omitempty"`
}

// HandleStats reports room occupancy, online users, and transfer-log totals.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	resp := statsResponse{
		Rooms:            s.hub.Occupancy(),
		OnlineUsers:      s.presence.Names(),
		PendingTransfers: s.transfers.Pending(),
	}
	if s.store != nil {
		count, bytes, err := s.store.TransferTotals(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.TransfersTotal = count
		resp.TransferBytes = bytes
		records, err := s.store.RecentTransfers(r.Context(), recentTransferLimit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for _, rec := range records {
			resp.RecentTransfers = append(resp.RecentTransfers, transferDTO{
				Room:        rec.Room,
				UserName:    rec.UserName,
				FileName:    rec.FileName,
				SizeBytes:   rec.SizeBytes,
				MimeType:    rec.MimeType,
				TransferMS:  rec.TransferMS,
				CompletedAt: rec.CompletedAt,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
