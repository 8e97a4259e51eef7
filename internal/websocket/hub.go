package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/metrics"
	"github.com/xelth-com/argoxlabels/internal/services/labelsync"
)

// Message types pushed to subscribers
const (
	TypeSyncLog  = "SYNC_LOG"
	TypeSyncDone = "SYNC_DONE"
)

// SyncLogMessage carries one progress line of a run
type SyncLogMessage struct {
	Type  string    `json:"type"`
	RunID string    `json:"runId"`
	Line  string    `json:"line"`
	At    time.Time `json:"at"`
}

// SyncDoneMessage closes a run
type SyncDoneMessage struct {
	Type          string          `json:"type"`
	RunID         string          `json:"runId"`
	State         labelsync.State `json:"state"`
	Count         int             `json:"count"`
	FailedBatches int             `json:"failedBatches"`
	Error         string          `json:"error,omitempty"`
	Kind          apperr.Kind     `json:"kind,omitempty"`
	Code          string          `json:"code,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Outbound messages for every client
	broadcast chan []byte

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[*Client]bool),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.WSSubscribers.Set(float64(len(h.clients)))
			h.mu.Unlock()
			log.Printf("📡 Sync log subscriber connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WSSubscribers.Set(float64(len(h.clients)))
				log.Printf("📴 Sync log subscriber disconnected: %s", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full or client dead
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message for every connected client
func (h *Hub) Broadcast(message interface{}) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	select {
	case h.broadcast <- jsonMsg:
	default:
		log.Println("⚠️  Sync log broadcast queue full, dropping message")
	}
}

// SyncLog forwards a progress line to subscribers
func (h *Hub) SyncLog(runID, line string) {
	h.Broadcast(SyncLogMessage{Type: TypeSyncLog, RunID: runID, Line: line, At: time.Now().UTC()})
}

// SyncDone announces the end of a run
func (h *Hub) SyncDone(result *labelsync.Result, err error) {
	msg := SyncDoneMessage{Type: TypeSyncDone}
	if result != nil {
		msg.RunID = result.RunID
		msg.State = result.State
		msg.Count = result.RecordsWritten
		msg.FailedBatches = result.FailedBatches
	}
	if err != nil {
		msg.Error = err.Error()
		msg.Kind = apperr.KindOf(err)
		msg.Code = apperr.CodeOf(err)
	}
	h.Broadcast(msg)
}
