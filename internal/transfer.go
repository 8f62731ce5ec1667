package internal

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxTransferSize caps the declared size of a single file transfer.
const MaxTransferSize = 100 * 1024 * 1024

var (
	// ErrSizeExceeded rejects a transfer whose declared size is over the cap.
	ErrSizeExceeded = errors.New("file size exceeds 100 MB limit")
	// ErrUnknownTransfer covers chunk events for ids that were never
	// registered or have already completed.
	ErrUnknownTransfer = errors.New("invalid file transfer")
	// ErrChunkOutOfOrder rejects a chunk whose index does not match the next
	// expected one; the transfer is dropped.
	ErrChunkOutOfOrder = errors.New("chunk received out of order")
)

// Transfer is one in-flight chunked upload. Chunks accumulate in arrival
// order, which the registry keeps equal to logical order by checking the
// chunk index against nextIndex.
type Transfer struct {
	ID        string
	SessionID string
	Room      string
	UserName  string
	FileName  string
	FileSize  int64
	FileType  string
	chunks    [][]byte
	nextIndex int
	startedAt time.Time
}

// CompletedTransfer is handed back when the final chunk arrives; the caller
// broadcasts it to the owning room.
type CompletedTransfer struct {
	Room        string
	UserName    string
	FileName    string
	FileSize    int64
	FileType    string
	Content     string // base64 of the reassembled bytes
	ContentSize int64  // decoded byte count
	Elapsed     time.Duration
}

// TransferRegistry tracks in-flight uploads keyed by transfer id. It is
// shared by all sessions, so every operation takes the mutex.
type TransferRegistry struct {
	mu        sync.Mutex
	transfers map[string]*Transfer
	maxSize   int64
}

// NewTransferRegistry builds an empty registry. maxSize <= 0 falls back to
// MaxTransferSize.
func NewTransferRegistry(maxSize int64) *TransferRegistry {
	if maxSize <= 0 {
		maxSize = MaxTransferSize
	}
	return &TransferRegistry{
		transfers: make(map[string]*Transfer),
		maxSize:   maxSize,
	}
}

// Begin registers a pending transfer and returns its id. A declared size
// over the cap is rejected up front and no entry is created.
func (registry *TransferRegistry) Begin(sessionID, room, userName, fileName string, fileSize int64, fileType string) (string, error) {
	if fileSize > registry.maxSize {
		return "", ErrSizeExceeded
	}
	id := fmt.Sprintf("%s-%s", sessionID, uuid.NewString())
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.transfers[id] = &Transfer{
		ID:        id,
		SessionID: sessionID,
		Room:      room,
		UserName:  userName,
		FileName:  fileName,
		FileSize:  fileSize,
		FileType:  fileType,
		chunks:    make([][]byte, 0),
		startedAt: time.Now(),
	}
	return id, nil
}

// AppendChunk adds one chunk to the transfer. The returned CompletedTransfer
// is nil until the last chunk arrives, at which point the transfer is
// removed from the registry and the reassembled payload returned. A chunk
// index that is not the next expected one drops the transfer.
func (registry *TransferRegistry) AppendChunk(id string, chunk []byte, chunkIndex int, isLastChunk bool) (*CompletedTransfer, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	transfer, exists := registry.transfers[id]
	if !exists {
		return nil, ErrUnknownTransfer
	}
	if chunkIndex != transfer.nextIndex {
		delete(registry.transfers, id)
		return nil, ErrChunkOutOfOrder
	}
	transfer.nextIndex++
	transfer.chunks = append(transfer.chunks, chunk)
	if !isLastChunk {
		return nil, nil
	}
	delete(registry.transfers, id)

	var buffer bytes.Buffer
	for _, part := range transfer.chunks {
		buffer.Write(part)
	}
	return &CompletedTransfer{
		Room:        transfer.Room,
		UserName:    transfer.UserName,
		FileName:    transfer.FileName,
		FileSize:    transfer.FileSize,
		FileType:    transfer.FileType,
		Content:     base64.StdEncoding.EncodeToString(buffer.Bytes()),
		ContentSize: int64(buffer.Len()),
		Elapsed:     time.Since(transfer.startedAt),
	}, nil
}

// AbandonSession frees every transfer owned by the session and reports how
// many were dropped. Called when the owning connection goes away.
func (registry *TransferRegistry) AbandonSession(sessionID string) int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	dropped := 0
	for id, transfer := range registry.transfers {
		if transfer.SessionID == sessionID {
			delete(registry.transfers, id)
			dropped++
		}
	}
	return dropped
}

// Pending reports how many transfers are currently in flight.
func (registry *TransferRegistry) Pending() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.transfers)
}
