package panel

import (
	"encoding/json"
	"net/http"
	"strings"

	"vu/ase/roverconsole/src/command"
	"vu/ase/roverconsole/src/state"
	"vu/ase/roverconsole/src/stream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// The connection manager as seen by the panel
type Connection interface {
	Reconnect(baseURL string)
	EnsureConnected(baseURL string)
	Disconnect()
	Status() state.StatusEvent
	Subscribe(f func(state.StatusEvent))
}

// The command sender as seen by the panel
type Commands interface {
	SetURL(baseURL string)
	URL() string
	Press(b command.Button)
	Release(b command.Button)
}

// Panel is the operator facing API: the controls and the status indicator of the console
type Panel struct {
	conn   Connection
	cmds   Commands
	speed  *command.SpeedField
	viewer *stream.Viewer
	hub    *Hub
	log    zerolog.Logger
}

func New(conn Connection, cmds Commands, speed *command.SpeedField, viewer *stream.Viewer) *Panel {
	p := &Panel{
		conn:   conn,
		cmds:   cmds,
		speed:  speed,
		viewer: viewer,
		hub:    NewHub(),
		log:    log.With().Str("component", "panel").Logger(),
	}
	conn.Subscribe(p.hub.Publish)
	return p
}

func (p *Panel) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", p.handleStatus)
		r.Post("/connect", p.handleConnect)
		r.Post("/ensure", p.handleEnsure)
		r.Post("/disconnect", p.handleDisconnect)
		r.Post("/buttons/{type}/{value}/{action}", p.handleButton)
		r.Put("/speed", p.handleSpeed)
		r.Put("/stream", p.handleStream)
	})

	r.Get("/ws/status", func(w http.ResponseWriter, r *http.Request) {
		p.hub.serve(w, r, p.conn.Status())
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type urlRequest struct {
	URL string `json:"url"`
}

func (p *Panel) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.conn.Status())
}

// A changed rover URL moves both the commands and the video session
func (p *Panel) handleConnect(w http.ResponseWriter, r *http.Request) {
	req := urlRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	p.cmds.SetURL(req.URL)
	p.conn.Reconnect(req.URL)
	writeJSON(w, http.StatusAccepted, p.conn.Status())
}

func (p *Panel) handleEnsure(w http.ResponseWriter, r *http.Request) {
	p.conn.EnsureConnected(p.cmds.URL())
	writeJSON(w, http.StatusAccepted, p.conn.Status())
}

func (p *Panel) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	p.conn.Disconnect()
	writeJSON(w, http.StatusOK, p.conn.Status())
}

func (p *Panel) handleButton(w http.ResponseWriter, r *http.Request) {
	button := command.Button{
		Type:  chi.URLParam(r, "type"),
		Value: chi.URLParam(r, "value"),
	}
	if button.Type != command.ButtonTypeDirection && button.Type != command.ButtonTypeTurning {
		http.NotFound(w, r)
		return
	}

	switch chi.URLParam(r, "action") {
	case "press":
		p.cmds.Press(button)
	case "release":
		p.cmds.Release(button)
	default:
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type speedRequest struct {
	Speed json.RawMessage `json:"speed"`
}

// Accepts the raw input field content, either as JSON string or number
func (p *Panel) handleSpeed(w http.ResponseWriter, r *http.Request) {
	req := speedRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	raw := strings.TrimSpace(string(req.Speed))
	var s string
	if err := json.Unmarshal(req.Speed, &s); err == nil {
		raw = s
	}
	p.speed.Set(raw)
	writeJSON(w, http.StatusOK, map[string]int{"speed": p.speed.Speed()})
}

func (p *Panel) handleStream(w http.ResponseWriter, r *http.Request) {
	req := urlRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	source, _ := p.viewer.SetBase(req.URL)
	writeJSON(w, http.StatusOK, map[string]string{"source": source})
}
