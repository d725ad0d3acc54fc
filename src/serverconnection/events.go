package serverconnection

import (
	"vu/ase/roverconsole/src/state"

	"github.com/pion/webrtc/v4"
)

// Follow the transport state of one session generation
func (m *Manager) onConnectionStateChange(generation uint64) func(webrtc.PeerConnectionState) {
	return func(s webrtc.PeerConnectionState) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if generation != m.generation {
			return
		}
		m.log.Debug().Str("newState", s.String()).Uint64("generation", generation).Msg("Transport state changed")

		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			m.log.Warn().Str("state", s.String()).Msg("Connection lost")
			m.setState(state.Disconnected)
			m.scheduleRetry(m.opts.RetryOnStateChange, true)
		case webrtc.PeerConnectionStateConnected:
			m.setState(state.Connected)
		}
	}
}

// A received track means media is flowing, so the session counts as connected
func (m *Manager) onTrack(generation uint64) func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {
	return func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		m.mu.Lock()
		if generation != m.generation {
			m.mu.Unlock()
			return
		}
		m.log.Info().Uint64("generation", generation).Msg("Received track")
		m.setState(state.Connected)
		sink := m.opts.Sink
		m.mu.Unlock()

		sink.HandleTrack(track, receiver)
	}
}
