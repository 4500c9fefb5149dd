package pricing

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atmx/pricing-engine/internal/contract"
	"github.com/atmx/pricing-engine/internal/metrics"
)

const (
	sendQueue    = 64
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// WSMessage is a JSON message sent to WebSocket subscribers.
type WSMessage struct {
	Type       string `json:"type"`
	QuoteID    string `json:"quote_id"`
	Ticker     string `json:"ticker"`
	Family     string `json:"family"`
	Price      string `json:"price,omitempty"`
	Paths      int    `json:"paths,omitempty"`
	Steps      int    `json:"steps,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

type envelope struct {
	family contract.Family
	data   []byte
}

// subscriber is one connection. An empty family set receives everything.
type subscriber struct {
	conn     *websocket.Conn
	families map[contract.Family]bool
	send     chan []byte
}

func (s *subscriber) wants(f contract.Family) bool {
	return len(s.families) == 0 || s.families[f]
}

// WSHub fans priced quotes out to subscribers. Each subscriber has its own
// queue drained by a writer goroutine; a subscriber whose queue is full is
// dropped instead of stalling the others.
type WSHub struct {
	subs       map[*subscriber]struct{}
	publish    chan envelope
	register   chan *subscriber
	unregister chan *subscriber
	done       chan struct{}
	mu         sync.RWMutex
}

// NewWSHub creates a hub. Nothing is delivered until Run is started.
func NewWSHub() *WSHub {
	return &WSHub{
		subs:       make(map[*subscriber]struct{}),
		publish:    make(chan envelope, 256),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx is done, after closing
// every subscriber.
func (h *WSHub) Run(ctx context.Context) {
	defer metrics.WebSocketClients.Set(0)
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for s := range h.subs {
				h.drop(s)
			}
			h.mu.Unlock()
			return

		case s := <-h.register:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			slog.Info("ws subscriber connected", "total", n, "families", len(s.families))

		case s := <-h.unregister:
			h.mu.Lock()
			h.drop(s)
			n := len(h.subs)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))

		case env := <-h.publish:
			h.mu.Lock()
			for s := range h.subs {
				if !s.wants(env.family) {
					continue
				}
				select {
				case s.send <- env.data:
				default:
					slog.Warn("ws subscriber too slow, dropping")
					h.drop(s)
				}
			}
			n := len(h.subs)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
		}
	}
}

// drop removes s and closes its queue. Callers hold h.mu.
func (h *WSHub) drop(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
}

// Clients returns the number of connected subscribers.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast queues msg for every subscriber of its family. It never blocks;
// when the hub is backed up the message is discarded.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.publish <- envelope{family: contract.Family(msg.Family), data: data}:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// parseFamilies reads a comma-separated ?family= filter.
func parseFamilies(raw string) (map[contract.Family]bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[contract.Family]bool)
	for _, tok := range strings.Split(raw, ",") {
		f := contract.Family(strings.ToUpper(strings.TrimSpace(tok)))
		if !f.Valid() {
			return nil, contract.ErrInvalidFamily
		}
		out[f] = true
	}
	return out, nil
}

// HandleWS upgrades GET /api/v1/ws. An optional ?family=BARRIER,ASIAN
// restricts the feed to those product families.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	families, err := parseFamilies(r.URL.Query().Get("family"))
	if err != nil {
		writeError(w, "unknown family in filter: "+r.URL.Query().Get("family"), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	s := &subscriber{conn: conn, families: families, send: make(chan []byte, sendQueue)}
	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go h.readLoop(s)
	go writeLoop(s)
}

// readLoop discards inbound frames and unregisters s once the peer goes away.
func (h *WSHub) readLoop(s *subscriber) {
	defer func() {
		select {
		case h.unregister <- s:
		case <-h.done:
		}
	}()
	s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer on s.conn. It exits, closing the
// connection, when the hub closes s.send.
func writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
