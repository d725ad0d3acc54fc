package serverconnection

import (
	"context"
	"net/http"
	"sync"
	"time"

	consoleconfig "vu/ase/roverconsole/src/config"
	"vu/ase/roverconsole/src/state"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"
)

const (
	DefaultRetryOnStateChange = 2 * time.Second
	DefaultRetryOnError       = 3 * time.Second
	DefaultOfferTimeout       = 10 * time.Second
)

type Options struct {
	PeerConfig webrtc.Configuration
	NewPeer    PeerFactory
	Client     *http.Client
	Clock      clock.WithDelayedExecution
	// Receives every inbound track of the current session
	Sink TrackSink

	RetryOnStateChange time.Duration
	RetryOnError       time.Duration
	OfferTimeout       time.Duration
}

func (o *Options) setDefaults() {
	if o.NewPeer == nil {
		o.NewPeer = NewPionPeer
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	if o.Sink == nil {
		o.Sink = &DrainSink{}
	}
	if o.RetryOnStateChange <= 0 {
		o.RetryOnStateChange = DefaultRetryOnStateChange
	}
	if o.RetryOnError <= 0 {
		o.RetryOnError = DefaultRetryOnError
	}
	if o.OfferTimeout <= 0 {
		o.OfferTimeout = DefaultOfferTimeout
	}
}

// Manager owns the single media session with the rover and keeps it alive.
//
// Every negotiation attempt gets a new generation. Answers, tracks and state
// changes that belong to an older generation are discarded, so a late answer
// can never be applied to a newer session.
type Manager struct {
	opts Options
	log  zerolog.Logger

	mu         sync.Mutex
	state      state.ConnectionState
	baseURL    string
	generation uint64
	sessionId  string
	peer       Peer
	cancel     context.CancelFunc
	retry      clock.Timer
	retryId    uint64
	listeners  []func(state.StatusEvent)
}

func NewManager(opts Options) *Manager {
	opts.setDefaults()
	return &Manager{
		opts:  opts,
		log:   log.With().Str("component", "connection").Logger(),
		state: state.Disconnected,
	}
}

// Registers a listener that is called on every state transition. Listeners
// run with the manager locked and must not call back into it
func (m *Manager) Subscribe(f func(state.StatusEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, f)
}

func (m *Manager) State() state.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Status() state.StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return state.NewStatusEvent(m.state, m.generation, m.sessionId, m.baseURL)
}

// Starts a new session with the rover at baseURL. Does nothing while a negotiation is already running
func (m *Manager) Connect(baseURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == state.Connecting {
		m.log.Debug().Msg("Already connecting, ignoring connect")
		return
	}

	base := consoleconfig.NormalizeBase(baseURL)
	if base == "" {
		m.log.Warn().Msg("No rover URL set")
		if m.state != state.Connected {
			m.setState(state.Disconnected)
		}
		return
	}

	m.cancelRetry()
	m.generation++
	m.teardown()

	m.baseURL = base
	m.sessionId = uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.OfferTimeout)
	m.cancel = cancel
	m.setState(state.Connecting)

	go m.negotiate(ctx, m.generation, base)
}

// Cancels any pending retry, closes the session and stops all received tracks
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelRetry()
	m.generation++
	m.teardown()
	m.setState(state.Disconnected)
}

// Used when the rover URL changes
func (m *Manager) Reconnect(baseURL string) {
	m.Disconnect()
	m.Connect(baseURL)
}

// Connects unless the session is already up
func (m *Manager) EnsureConnected(baseURL string) {
	if m.State() == state.Connected {
		return
	}
	m.Connect(baseURL)
}

func (m *Manager) negotiate(ctx context.Context, generation uint64, base string) {
	peer, err := m.opts.NewPeer(m.opts.PeerConfig)
	if err != nil {
		m.fail(generation, err)
		return
	}
	if !m.adopt(generation, peer) {
		_ = peer.Close()
		return
	}

	offer, err := peer.Offer(ctx)
	if err != nil {
		m.fail(generation, err)
		return
	}

	answer, err := SendOffer(ctx, m.opts.Client, base, offer)
	if err != nil {
		m.fail(generation, err)
		return
	}

	// The answer is only valid for the session that produced the offer
	if !m.isCurrent(generation) {
		m.log.Debug().Uint64("generation", generation).Msg("Discarding stale answer")
		return
	}
	if err = peer.SetAnswer(answer); err != nil {
		m.fail(generation, err)
		return
	}
	m.log.Info().Uint64("generation", generation).Msg("Applied SDP answer from rover")
}

// Makes peer the current session, unless a newer attempt has started in the meantime
func (m *Manager) adopt(generation uint64, peer Peer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		return false
	}
	m.peer = peer
	peer.OnConnectionStateChange(m.onConnectionStateChange(generation))
	peer.OnTrack(m.onTrack(generation))
	return true
}

func (m *Manager) isCurrent(generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return generation == m.generation
}

func (m *Manager) fail(generation uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		m.log.Debug().Err(err).Uint64("generation", generation).Msg("Ignoring error of stale session")
		return
	}
	m.log.Err(err).Msg("WebRTC connection error")
	m.setState(state.Disconnected)
	m.scheduleRetry(m.opts.RetryOnError, false)
}

// Must be called with the manager locked
func (m *Manager) setState(s state.ConnectionState) {
	if s == m.state {
		return
	}
	m.log.Info().Str("from", m.state.String()).Str("to", s.String()).Uint64("generation", m.generation).Msg("Connection state changed")
	m.state = s

	ev := state.NewStatusEvent(s, m.generation, m.sessionId, m.baseURL)
	for _, f := range m.listeners {
		f(ev)
	}
}

// Must be called with the manager locked. Replaces any pending retry
func (m *Manager) scheduleRetry(delay time.Duration, skipIfConnected bool) {
	m.cancelRetry()

	m.retryId++
	generation, id := m.generation, m.retryId
	m.retry = m.opts.Clock.AfterFunc(delay, func() {
		go m.fireRetry(generation, id, skipIfConnected)
	})
	m.log.Info().Dur("delay", delay).Msg("Scheduled reconnect")
}

func (m *Manager) fireRetry(generation uint64, id uint64, skipIfConnected bool) {
	m.mu.Lock()
	if generation != m.generation || id != m.retryId || m.retry == nil {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	if skipIfConnected && m.state == state.Connected {
		m.mu.Unlock()
		return
	}
	base := m.baseURL
	m.mu.Unlock()

	m.log.Info().Msg("Reconnecting")
	m.Connect(base)
}

// Must be called with the manager locked
func (m *Manager) cancelRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

// Must be called with the manager locked
func (m *Manager) teardown() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.peer != nil {
		m.peer.StopTracks()
		if err := m.peer.Close(); err != nil {
			m.log.Warn().Err(err).Msg("Could not close peer connection")
		}
		m.peer = nil
	}
}

// Only used by tests
func (m *Manager) retryPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retry != nil
}
