package panel

import (
	"net/http"
	"sync"
	"time"

	"vu/ase/roverconsole/src/state"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	clientBuffer = 16
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the panel is served to the local operator only
	},
}

// Hub fans status events out to all connected websocket clients
type Hub struct {
	mu      sync.Mutex
	clients map[chan state.StatusEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan state.StatusEvent]struct{})}
}

// Never blocks: slow clients miss events rather than stalling the connection manager
func (h *Hub) Publish(ev state.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			log.Debug().Msg("Status client lagging, dropping event")
		}
	}
}

func (h *Hub) register() chan state.StatusEvent {
	ch := make(chan state.StatusEvent, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(ch chan state.StatusEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Upgrades the request and streams status events, starting with current
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, current state.StatusEvent) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Err(err).Msg("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	ch := h.register()
	defer h.unregister(ch)

	// The reader only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err = writeEvent(conn, current); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if err = writeEvent(conn, ev); err != nil {
				log.Debug().Err(err).Msg("Status client gone")
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev state.StatusEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
