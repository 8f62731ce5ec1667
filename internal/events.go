package internal

import (
	"encoding/base64"
	"encoding/json"
)

// event names exchanged over the websocket, matching both directions of the protocol.
const (
	EventJoinRoom          = "joinRoom"
	EventChatMessage       = "chatMessage"
	EventMessage           = "message"
	EventStartFileTransfer = "start-file-transfer"
	EventFileTransferReady = "file-transfer-ready"
	EventFileChunk         = "file-chunk"
	EventChunkReceived     = "chunk-received"
	EventFileMessage       = "fileMessage"
	EventFileTransferError = "file-transfer-error"
)

// Envelope is the json frame that wraps every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomRequest asks the server to place the connection in a room.
type JoinRoomRequest struct {
	Room     string `json:"room"`
	UserName string `json:"userName"`
}

// ChatMessageRequest carries one chat line from a client.
type ChatMessageRequest struct {
	Room     string `json:"room"`
	UserName string `json:"userName"`
	Message  string `json:"message"`
}

// MessageNotice is a chat line or system notice delivered to room members.
type MessageNotice struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// FileTransferRequest announces an upcoming chunked upload.
type FileTransferRequest struct {
	Room     string `json:"room"`
	UserName string `json:"userName"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

// FileTransferReady acknowledges a registered transfer; the client may start
// sending chunks for the given id.
type FileTransferReady struct {
	FileID string `json:"fileId"`
}

// FileChunk carries one slice of file bytes. Chunk is base64 on the wire.
type FileChunk struct {
	FileID      string `json:"fileId"`
	Chunk       []byte `json:"chunk"`
	ChunkIndex  int    `json:"chunkIndex"`
	IsLastChunk bool   `json:"isLastChunk"`
}

// ChunkReceived is the per-chunk acknowledgment back to the sender.
type ChunkReceived struct {
	FileID     string `json:"fileId"`
	ChunkIndex int    `json:"chunkIndex"`
}

// FileMessage delivers a completed file to room members. FileContent is the
// base64 encoding of the reassembled bytes; TransferTime is milliseconds
// between registration and the final chunk.
type FileMessage struct {
	User         string `json:"user"`
	FileName     string `json:"fileName"`
	FileSize     int64  `json:"fileSize"`
	FileType     string `json:"fileType"`
	FileContent  string `json:"fileContent"`
	TransferTime int64  `json:"transferTime"`
}

// decodeFileContent recovers the raw bytes of a delivered fileMessage.
func decodeFileContent(content string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(content)
}

// encodeEvent builds a wire frame for the given event and payload.
func encodeEvent(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
