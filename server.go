package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"i4.energy/across/atsniff/at"
)

const (
	// recentRecords is how many records GET /records can return.
	recentRecords = 1024

	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server publishes the records of a live source: the most recent ones on
// GET /records and every new one to the WebSocket clients of /ws.
type Server struct {
	Logger *slog.Logger

	mu      sync.Mutex
	recent  []at.Record
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{
		Logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /records", s.handleRecords)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.ServeHTTP(w, r)
}

// Publish keeps rec for GET /records and sends it to every WebSocket
// client. Clients that fall behind miss records.
func (s *Server) Publish(rec at.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.Logger.Error("Failed to encode record", "frame", rec.Frame, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, rec)
	if len(s.recent) > recentRecords {
		s.recent = s.recent[len(s.recent)-recentRecords:]
	}

	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.Logger.Warn("Client too slow, record dropped", "remote", c.conn.RemoteAddr().String(), "frame", rec.Frame)
		}
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// handleRecords returns the most recent records, oldest first. The session
// query parameter keeps one session only; limit caps the count.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	limit := recentRecords
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	session := at.Key(r.URL.Query().Get("session"))

	s.mu.Lock()
	records := make([]at.Record, 0, len(s.recent))
	for _, rec := range s.recent {
		if session == "" || rec.Key == session {
			records = append(records, rec)
		}
	}
	s.mu.Unlock()

	if len(records) > limit {
		records = records[len(records)-limit:]
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.Logger.Error("Failed to write records", "error", err)
	}
}

// handleWebSocket upgrades the connection and registers the client. The
// recent records are sent first, then every published one.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, recentRecords+256)}

	s.mu.Lock()
	for _, rec := range s.recent {
		if data, err := json.Marshal(rec); err == nil {
			c.send <- data
		}
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.Logger.Info("WebSocket client connected", "remote", conn.RemoteAddr().String())
	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
		s.Logger.Info("WebSocket client disconnected", "remote", c.conn.RemoteAddr().String())
	}
}

// readPump only watches for the client going away.
func (s *Server) readPump(c *client) {
	defer func() {
		s.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.Logger.Warn("WebSocket read failed", "error", err)
			}
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every WebSocket client.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
