package internal

import (
	"bytes"
	"encoding/base64"
	"errors"
	"math/rand"
	"testing"
)

func TestBeginRejectsOversizedTransfer(t *testing.T) {
	registry := NewTransferRegistry(0)
	_, err := registry.Begin("sess-1", "abc123", "alice", "big.bin", MaxTransferSize+1, "application/octet-stream")
	if !errors.Is(err, ErrSizeExceeded) {
		t.Fatalf("expected ErrSizeExceeded, got %v", err)
	}
	if registry.Pending() != 0 {
		t.Fatalf("rejected transfer must not be registered, pending=%d", registry.Pending())
	}
}

func TestBeginAtLimitAccepted(t *testing.T) {
	registry := NewTransferRegistry(0)
	id, err := registry.Begin("sess-1", "abc123", "alice", "big.bin", MaxTransferSize, "application/octet-stream")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if id == "" {
		t.Fatal("expected a transfer id")
	}
	if registry.Pending() != 1 {
		t.Fatalf("expected 1 pending transfer, got %d", registry.Pending())
	}
}

func TestAppendChunkUnknownID(t *testing.T) {
	registry := NewTransferRegistry(0)
	if _, err := registry.AppendChunk("nope", []byte("data"), 0, true); !errors.Is(err, ErrUnknownTransfer) {
		t.Fatalf("expected ErrUnknownTransfer, got %v", err)
	}
}

// a 250 KB payload split into 100 KB chunks must reassemble byte-identical.
func TestChunkedRoundTrip(t *testing.T) {
	source := make([]byte, 250*1024)
	rng := rand.New(rand.NewSource(42))
	rng.Read(source)

	registry := NewTransferRegistry(0)
	id, err := registry.Begin("sess-1", "abc123", "alice", "blob.bin", int64(len(source)), "application/octet-stream")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	const chunkSize = 100 * 1024
	index := 0
	var done *CompletedTransfer
	for offset := 0; offset < len(source); offset += chunkSize {
		end := offset + chunkSize
		if end > len(source) {
			end = len(source)
		}
		isLast := end == len(source)
		done, err = registry.AppendChunk(id, source[offset:end], index, isLast)
		if err != nil {
			t.Fatalf("AppendChunk %d: %v", index, err)
		}
		if isLast && done == nil {
			t.Fatal("expected completion on last chunk")
		}
		if !isLast && done != nil {
			t.Fatalf("unexpected completion at chunk %d", index)
		}
		index++
	}
	if index != 3 {
		t.Fatalf("expected 3 chunks, sent %d", index)
	}

	decoded, err := base64.StdEncoding.DecodeString(done.Content)
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if !bytes.Equal(decoded, source) {
		t.Fatal("reassembled payload differs from source")
	}
	if done.ContentSize != int64(len(source)) {
		t.Fatalf("content size %d, want %d", done.ContentSize, len(source))
	}
	if done.Room != "abc123" || done.UserName != "alice" || done.FileName != "blob.bin" {
		t.Fatalf("unexpected metadata: %+v", done)
	}

	// the transfer is gone the instant it completes
	if registry.Pending() != 0 {
		t.Fatalf("expected no pending transfers, got %d", registry.Pending())
	}
	if _, err := registry.AppendChunk(id, []byte("late"), index, true); !errors.Is(err, ErrUnknownTransfer) {
		t.Fatalf("chunk after completion: expected ErrUnknownTransfer, got %v", err)
	}
}

func TestOutOfOrderChunkDropsTransfer(t *testing.T) {
	registry := NewTransferRegistry(0)
	id, err := registry.Begin("sess-1", "abc123", "alice", "blob.bin", 1024, "")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := registry.AppendChunk(id, []byte("later"), 1, false); !errors.Is(err, ErrChunkOutOfOrder) {
		t.Fatalf("expected ErrChunkOutOfOrder, got %v", err)
	}
	// the transfer was dropped, so even a correct index now fails
	if _, err := registry.AppendChunk(id, []byte("first"), 0, false); !errors.Is(err, ErrUnknownTransfer) {
		t.Fatalf("expected ErrUnknownTransfer after drop, got %v", err)
	}
}

func TestAbandonSessionFreesOwnedTransfers(t *testing.T) {
	registry := NewTransferRegistry(0)
	if _, err := registry.Begin("sess-1", "room", "alice", "a.bin", 10, ""); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := registry.Begin("sess-1", "room", "alice", "b.bin", 10, ""); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	otherID, err := registry.Begin("sess-2", "room", "bob", "c.bin", 10, "")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if dropped := registry.AbandonSession("sess-1"); dropped != 2 {
		t.Fatalf("expected 2 dropped transfers, got %d", dropped)
	}
	if registry.Pending() != 1 {
		t.Fatalf("expected 1 surviving transfer, got %d", registry.Pending())
	}
	// the survivor still completes normally
	if _, err := registry.AppendChunk(otherID, []byte("0123456789"), 0, true); err != nil {
		t.Fatalf("surviving transfer: %v", err)
	}
}

func TestTransferIDsUniquePerAttempt(t *testing.T) {
	registry := NewTransferRegistry(0)
	first, err := registry.Begin("sess-1", "room", "alice", "a.bin", 10, "")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	second, err := registry.Begin("sess-1", "room", "alice", "a.bin", 10, "")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct ids, both were %q", first)
	}
}
