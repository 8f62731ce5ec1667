package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientChunkSize  = 100 * 1024
	readyWaitTimeout = 10 * time.Second
)

// RelayConn is the client side of the relay protocol: one websocket plus a
// demultiplexed event stream. Writes are serialized with a mutex because the
// TUI and a file send can emit concurrently.
type RelayConn struct {
	conn       *websocket.Conn
	writeMutex sync.Mutex
	events     chan Envelope
	readErr    chan error
	pendingMu  sync.Mutex
	pendingRdy chan FileTransferReady
}

// DialRelay connects to the server's join URL and starts the read loop.
func DialRelay(joinURL string) (*RelayConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(joinURL, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(MaxTransferSize + MaxTransferSize/3 + 1024)
	relay := &RelayConn{
		conn:    conn,
		events:  make(chan Envelope, 64),
		readErr: make(chan error, 1),
	}
	go relay.readLoop()
	return relay, nil
}

// Events yields every server event except file-transfer-ready frames claimed
// by an in-flight SendFile.
func (c *RelayConn) Events() <-chan Envelope {
	return c.events
}

// ReadErr reports the terminal read error once the connection drops.
func (c *RelayConn) ReadErr() <-chan error {
	return c.readErr
}

func (c *RelayConn) Close() error {
	return c.conn.Close()
}

func (c *RelayConn) readLoop() {
	defer close(c.events)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr <- err
			return
		}
		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			continue
		}
		if envelope.Event == EventFileTransferReady {
			c.pendingMu.Lock()
			pending := c.pendingRdy
			c.pendingRdy = nil
			c.pendingMu.Unlock()
			if pending != nil {
				var ready FileTransferReady
				if json.Unmarshal(envelope.Data, &ready) == nil {
					pending <- ready
					continue
				}
			}
		}
		c.events <- envelope
	}
}

func (c *RelayConn) writeEvent(event string, payload interface{}) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Join enters the named room under the given display name.
func (c *RelayConn) Join(room, userName string) error {
	return c.writeEvent(EventJoinRoom, JoinRoomRequest{Room: room, UserName: userName})
}

// SendChat relays one chat line to the room.
func (c *RelayConn) SendChat(room, userName, message string) error {
	return c.writeEvent(EventChatMessage, ChatMessageRequest{Room: room, UserName: userName, Message: message})
}

// SendFile registers a transfer for the file at path and streams it in
// 100 KiB chunks. It blocks until every chunk has been written.
func (c *RelayConn) SendFile(room, userName, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if int64(len(data)) > MaxTransferSize {
		return ErrSizeExceeded
	}
	fileName := filepath.Base(path)
	fileType := mime.TypeByExtension(filepath.Ext(fileName))

	ready := make(chan FileTransferReady, 1)
	c.pendingMu.Lock()
	c.pendingRdy = ready
	c.pendingMu.Unlock()

	err = c.writeEvent(EventStartFileTransfer, FileTransferRequest{
		Room:     room,
		UserName: userName,
		FileName: fileName,
		FileSize: int64(len(data)),
		FileType: fileType,
	})
	if err != nil {
		return err
	}

	var fileID string
	select {
	case ack := <-ready:
		fileID = ack.FileID
	case <-time.After(readyWaitTimeout):
		c.pendingMu.Lock()
		c.pendingRdy = nil
		c.pendingMu.Unlock()
		return errors.New("timed out waiting for transfer registration")
	}

	for offset, index := 0, 0; ; index++ {
		end := offset + clientChunkSize
		if end > len(data) {
			end = len(data)
		}
		isLast := end == len(data)
		err := c.writeEvent(EventFileChunk, FileChunk{
			FileID:      fileID,
			Chunk:       data[offset:end],
			ChunkIndex:  index,
			IsLastChunk: isLast,
		})
		if err != nil {
			return err
		}
		if isLast {
			return nil
		}
		offset = end
	}
}

// SaveFileMessage decodes a received fileMessage into the download directory
// and returns the written path. Name collisions get a numeric suffix.
func SaveFileMessage(downloadDir string, message FileMessage) (string, error) {
	content, err := decodeFileContent(message.FileContent)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return "", err
	}
	name := filepath.Base(message.FileName)
	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}
	target := filepath.Join(downloadDir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(name)
		target = filepath.Join(downloadDir, fmt.Sprintf("%s-%d%s", name[:len(name)-len(ext)], i, ext))
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return "", err
	}
	return target, nil
}
