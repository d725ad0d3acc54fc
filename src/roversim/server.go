package roversim

import (
	"encoding/json"
	"net/http"
	"sync"

	"vu/ase/roverconsole/src/command"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultSpeed = 40

// Server plays the rover side of the console: /drive moves the simulated drivetrain, /offer answers video sessions
type Server struct {
	Drivetrain *Drivetrain
	log        zerolog.Logger

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]struct{}
}

func NewServer() *Server {
	return &Server{
		Drivetrain: NewDrivetrain(),
		log:        log.With().Str("component", "roversim").Logger(),
		peers:      make(map[*webrtc.PeerConnection]struct{}),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(allowAllOrigins)

	r.Post("/drive", s.handleDrive)
	r.Post("/offer", s.handleOffer)
	r.Get("/state", s.handleState)
	return r
}

// Closes all peer connections that are still open
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pc := range s.peers {
		_ = pc.Close()
		delete(s.peers, pc)
	}
	s.Drivetrain.Stop()
}

func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

// Fields stay raw so a missing key can be told apart from an explicit null
type driveRequest map[string]json.RawMessage

// Returns the decoded field and whether the key was present at all
func (req driveRequest) field(key string) (any, bool) {
	raw, ok := req[key]
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, true
	}
	return v, true
}

// Empty and null both count as "not set". Non-string values are set but never valid
func optional(v any) (value string, set bool, valid bool) {
	switch t := v.(type) {
	case nil:
		return "", false, true
	case string:
		return t, t != "", true
	default:
		return "", true, false
	}
}

func (s *Server) handleDrive(w http.ResponseWriter, r *http.Request) {
	req := driveRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Drivetrain.Stop()
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	rawDirection, _ := req.field("direction")
	rawTurning, _ := req.field("turning")
	rawSpeed, speedPresent := req.field("speed")
	if !speedPresent {
		rawSpeed = float64(defaultSpeed)
	}

	direction, directionSet, directionValid := optional(rawDirection)
	turning, turningSet, turningValid := optional(rawTurning)
	s.log.Info().Interface("direction", rawDirection).Interface("turning", rawTurning).Interface("speed", rawSpeed).Msg("Drive request")

	if directionSet && turningSet {
		s.Drivetrain.Stop()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Only one of 'direction' or 'turning' can be set."})
		return
	}

	if !directionSet && !turningSet {
		s.Drivetrain.Stop()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "stopped",
			"message": "No direction or turning specified. Motors stopped.",
		})
		return
	}

	if !directionValid || (directionSet && direction != string(command.Forward) && direction != string(command.Backward)) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid 'direction' value."})
		return
	}
	if !turningValid || (turningSet && turning != string(command.Left) && turning != string(command.Right)) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid 'turning' value."})
		return
	}

	speed, ok := rawSpeed.(float64)
	if !ok || speed < 0 || speed > 100 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Speed must be a number between 0 and 100."})
		return
	}

	s.Drivetrain.Drive(command.Direction(direction), command.Turning(turning), speed)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"direction": rawDirection,
		"turning":   rawTurning,
		"speed":     speed,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Drivetrain.State())
}

type sessionDescription struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	req := sessionDescription{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if webrtc.NewSDPType(req.Type) != webrtc.SDPTypeOffer {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "expected an offer"})
		return
	}

	answer, err := s.answer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: req.SDP})
	if err != nil {
		s.log.Err(err).Msg("Could not answer offer")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sessionDescription{SDP: answer.SDP, Type: answer.Type.String()})
}

// The simulator has no camera: the video track is negotiated but carries no samples
func (s *Server) answer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, errors.Wrap(err, "creating peer connection")
	}

	videoTrack, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "roversim")
	if err != nil {
		_ = pc.Close()
		return nil, errors.Wrap(err, "creating video track")
	}
	if _, err = pc.AddTrack(videoTrack); err != nil {
		_ = pc.Close()
		return nil, errors.Wrap(err, "adding video track")
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug().Str("state", state.String()).Msg("Simulator peer state changed")
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			s.forget(pc)
		}
	})

	if err = pc.SetRemoteDescription(offer); err != nil {
		_ = pc.Close()
		return nil, errors.Wrap(err, "setting remote description")
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, errors.Wrap(err, "creating answer")
	}
	gather := webrtc.GatheringCompletePromise(pc)
	if err = pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return nil, errors.Wrap(err, "setting local description")
	}
	<-gather

	s.mu.Lock()
	s.peers[pc] = struct{}{}
	s.mu.Unlock()

	return pc.LocalDescription(), nil
}

func (s *Server) forget(pc *webrtc.PeerConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[pc]; ok {
		delete(s.peers, pc)
		_ = pc.Close()
	}
}
