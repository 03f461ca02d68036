package http

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/marketops/tradegate/internal/audit"
)

// TelemetryHub fans audit events out to websocket subscribers and keeps
// a bounded ring of recent events for the REST endpoints. It implements
// audit.Sink; a slow subscriber is dropped, never allowed to stall the
// pipeline's synchronous flush.
type TelemetryHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan audit.Event
	recent  []audit.Event
	keep    int
}

// NewTelemetryHub creates a hub retaining the last keep events.
func NewTelemetryHub(keep int) *TelemetryHub {
	return &TelemetryHub{
		clients: make(map[*websocket.Conn]chan audit.Event),
		keep:    keep,
	}
}

// Append implements audit.Sink.
func (h *TelemetryHub) Append(_ context.Context, ev audit.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.recent = append(h.recent, ev)
	if len(h.recent) > h.keep {
		h.recent = h.recent[len(h.recent)-h.keep:]
	}
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Subscriber not keeping up; disconnect it.
			close(ch)
			delete(h.clients, conn)
			conn.Close()
		}
	}
	return nil
}

// Recent returns up to n of the latest events, newest last.
func (h *TelemetryHub) Recent(n int) []audit.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > len(h.recent) {
		n = len(h.recent)
	}
	out := make([]audit.Event, n)
	copy(out, h.recent[len(h.recent)-n:])
	return out
}

// Subscribe registers a websocket connection and starts its writer.
func (h *TelemetryHub) Subscribe(conn *websocket.Conn) {
	ch := make(chan audit.Event, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	go func() {
		for ev := range ch {
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("telemetry subscriber write failed")
				h.unsubscribe(conn)
				return
			}
		}
	}()
}

func (h *TelemetryHub) unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	conn.Close()
}

// Close implements audit.Sink.
func (h *TelemetryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		close(ch)
		conn.Close()
		delete(h.clients, conn)
	}
	return nil
}
