package state

import (
	"time"
)

// Lifecycle of the media session with the rover
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// The status indicator only distinguishes connected from everything else
func (s ConnectionState) Glyph() string {
	if s == Connected {
		return "●"
	}
	return "○"
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Emitted on every state transition, so that indicators can follow the session
type StatusEvent struct {
	State      ConnectionState `json:"state"`
	Glyph      string          `json:"glyph"`
	Generation uint64          `json:"generation"`
	SessionId  string          `json:"session_id,omitempty"`
	RoverURL   string          `json:"rover_url,omitempty"`
	At         time.Time       `json:"at"`
}

func NewStatusEvent(s ConnectionState, generation uint64, sessionId string, roverURL string) StatusEvent {
	return StatusEvent{
		State:      s,
		Glyph:      s.Glyph(),
		Generation: generation,
		SessionId:  sessionId,
		RoverURL:   roverURL,
		At:         time.Now(),
	}
}
