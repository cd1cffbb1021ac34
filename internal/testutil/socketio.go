package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SocketServer is a minimal Engine.IO v4 / Socket.IO v5 server speaking the
// websocket transport only. It routes events by the userId query parameter.
type SocketServer struct {
	// PingInterval and PingTimeout are advertised in the open packet.
	// When PingInterval is set the server also sends pings.
	PingInterval time.Duration
	PingTimeout  time.Duration

	upgrader websocket.Upgrader

	mu         sync.Mutex
	conns      map[*socketConn]struct{}
	dials      int
	registered []string
	rejectMsg  string
	pongs      int
}

type socketConn struct {
	userID string
	ws     *websocket.Conn

	writeMu sync.Mutex
}

func (c *socketConn) send(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

// NewSocketServer creates a server advertising a 25s/20s heartbeat.
func NewSocketServer() *SocketServer {
	return &SocketServer{
		PingTimeout: 20 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*socketConn]struct{}),
	}
}

// RejectConnect makes every following namespace connect fail with msg.
// An empty msg accepts connections again.
func (s *SocketServer) RejectConnect(msg string) {
	s.mu.Lock()
	s.rejectMsg = msg
	s.mu.Unlock()
}

func (s *SocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != "4" || q.Get("transport") != "websocket" {
		http.Error(w, `{"code":0,"message":"Transport unknown"}`, http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.dials++
	reject := s.rejectMsg
	interval := s.PingInterval
	timeout := s.PingTimeout
	s.mu.Unlock()

	conn := &socketConn{userID: q.Get("userId"), ws: ws}
	defer ws.Close()

	advertised := interval
	if advertised <= 0 {
		advertised = 25 * time.Second
	}
	open, _ := json.Marshal(map[string]any{
		"sid":          uuid.NewString(),
		"upgrades":     []string{},
		"pingInterval": advertised.Milliseconds(),
		"pingTimeout":  timeout.Milliseconds(),
		"maxPayload":   1000000,
	})
	if err := conn.send("0" + string(open)); err != nil {
		return
	}

	_, msg, err := ws.ReadMessage()
	if err != nil || !strings.HasPrefix(string(msg), "40") {
		return
	}
	if reject != "" {
		body, _ := json.Marshal(map[string]string{"message": reject})
		_ = conn.send("44" + string(body))
		return
	}

	// Registered before the ack so an Emit right after the client's
	// Connect returns reaches it.
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	if err := conn.send(fmt.Sprintf(`40{"sid":%q}`, uuid.NewString())); err != nil {
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					if conn.send("2") != nil {
						return
					}
				}
			}
		}()
	}

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame := string(msg)

		switch {
		case frame == "3":
			s.mu.Lock()
			s.pongs++
			s.mu.Unlock()
		case frame == "41" || frame == "1":
			return
		case strings.HasPrefix(frame, "42"):
			var parts []json.RawMessage
			if json.Unmarshal(msg[2:], &parts) != nil || len(parts) < 2 {
				continue
			}
			var name, id string
			_ = json.Unmarshal(parts[0], &name)
			if name == "register" && json.Unmarshal(parts[1], &id) == nil {
				s.mu.Lock()
				s.registered = append(s.registered, id)
				s.mu.Unlock()
			}
		}
	}
}

// Emit sends event with payload to every connection of userID and returns
// how many connections received it.
func (s *SocketServer) Emit(userID, event string, payload any) int {
	data, err := json.Marshal([]any{event, payload})
	if err != nil {
		panic(err)
	}
	return s.EmitRaw(userID, "42"+string(data))
}

// EmitRaw sends a pre-encoded frame to every connection of userID.
func (s *SocketServer) EmitRaw(userID, frame string) int {
	n := 0
	for _, c := range s.connsFor(userID) {
		if c.send(frame) == nil {
			n++
		}
	}
	return n
}

// Drop closes every connection of userID from the server side.
func (s *SocketServer) Drop(userID string) int {
	conns := s.connsFor(userID)
	for _, c := range conns {
		c.ws.Close()
	}
	return len(conns)
}

// Connections returns the number of live connections for userID.
func (s *SocketServer) Connections(userID string) int {
	return len(s.connsFor(userID))
}

// Dials returns the number of websocket upgrades served.
func (s *SocketServer) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Registered returns the ids sent with "register" events, in order.
func (s *SocketServer) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.registered...)
}

// Pongs returns the number of pong packets received.
func (s *SocketServer) Pongs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pongs
}

func (s *SocketServer) connsFor(userID string) []*socketConn {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*socketConn
	for c := range s.conns {
		if c.userID == userID {
			out = append(out, c)
		}
	}
	return out
}
