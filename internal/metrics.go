package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics counts relay activity. All counters are atomics so the hot paths
// never contend on a lock.
type Metrics struct {
	activeConns    atomic.Int64
	messagesTotal  atomic.Uint64
	transfersTotal atomic.Uint64
	transferBytes  atomic.Uint64
	transferErrors atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConn() {
	m.activeConns.Add(1)
}

func (m *Metrics) DecConn() {
	m.activeConns.Add(-1)
}

func (m *Metrics) IncMessage() {
	m.messagesTotal.Add(1)
}

func (m *Metrics) IncTransfer(bytes int64) {
	m.transfersTotal.Add(1)
	if bytes > 0 {
		m.transferBytes.Add(uint64(bytes))
	}
}

func (m *Metrics) IncTransferError() {
	m.transferErrors.Add(1)
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"active_connections": m.activeConns.Load(),
		"messages_total":     m.messagesTotal.Load(),
		"transfers_total":    m.transfersTotal.Load(),
		"transfer_bytes":     m.transferBytes.Load(),
		"transfer_errors":    m.transferErrors.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
