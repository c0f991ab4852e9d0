package web

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pylintview/internal/model"
)

// Event is pushed to websocket clients.
type Event struct {
	Type   string                `json:"type"` // "results" or "cleared"
	Result *model.AnalysisResult `json:"result,omitempty"`
}

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     sameOrigin,
}

// Hub fans events out to connected websocket clients. Slow clients miss
// events rather than block the sender.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[*websocket.Conn]chan Event)}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues ev for every client.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("Websocket client too slow, dropping event", slog.String("remote", conn.RemoteAddr().String()))
		}
	}
}

// Serve upgrades the request and pumps events until the client goes away.
// first, when set, is sent before anything else.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, first *Event) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Upgrade websocket", slog.String("error", err.Error()))
		return
	}
	ch := make(chan Event, clientBuffer)
	if first != nil {
		ch <- *first
	}

	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	h.logger.Debug("Websocket client connected", slog.String("remote", conn.RemoteAddr().String()))

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		h.logger.Debug("Websocket client disconnected", slog.String("remote", conn.RemoteAddr().String()))
	}()

	// reads only notice the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warn("Write websocket event", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Store keeps the latest result for the API and pushes changes to the hub.
// It is the web presenter.
type Store struct {
	hub *Hub

	mu     sync.RWMutex
	result model.AnalysisResult
	has    bool
}

func NewStore(hub *Hub) *Store {
	return &Store{hub: hub}
}

// Latest returns the current result, if there is one.
func (s *Store) Latest() (model.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.has
}

func (s *Store) ShowResults(r model.AnalysisResult) {
	s.mu.Lock()
	s.result, s.has = r, true
	s.mu.Unlock()
	s.hub.Broadcast(Event{Type: "results", Result: &r})
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.result, s.has = model.AnalysisResult{}, false
	s.mu.Unlock()
	s.hub.Broadcast(Event{Type: "cleared"})
}
