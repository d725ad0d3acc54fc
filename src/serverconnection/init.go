package serverconnection

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// The part of a peer connection the manager relies on. Implemented on top of pion, and faked in tests
type Peer interface {
	// Create an offer, apply it as local description and wait until ICE gathering completes
	Offer(ctx context.Context) (webrtc.SessionDescription, error)
	// Apply the answer of the rover as remote description
	SetAnswer(answer webrtc.SessionDescription) error
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	// Stop all receivers, ending the received media tracks
	StopTracks()
	Close() error
}

type PeerFactory func(conf webrtc.Configuration) (Peer, error)

type pionPeer struct {
	pc *webrtc.PeerConnection
}

// Creates a peer connection that receives exactly one video stream and sends no media
func NewPionPeer(conf webrtc.Configuration) (Peer, error) {
	peerConnection, err := webrtc.NewPeerConnection(conf)
	if err != nil {
		return nil, errors.Wrap(err, "creating peer connection")
	}

	// A recvonly transceiver is required, otherwise the offer contains no video section at all
	_, err = peerConnection.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		_ = peerConnection.Close()
		return nil, errors.Wrap(err, "adding video transceiver")
	}

	// Not needed without STUN/TURN, but useful when debugging LAN setups
	peerConnection.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		log.Debug().Str("candidate", c.String()).Msg("ICE candidate")
	})

	return &pionPeer{pc: peerConnection}, nil
}

func (p *pionPeer) Offer(ctx context.Context) (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, errors.Wrap(err, "creating offer")
	}

	// Create channel to block until ICE Gathering is complete
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)

	// note: this starts the gathering of ICE candidates
	if err = p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, errors.Wrap(err, "setting local description")
	}

	// Block until ICE Gathering is complete, disabling trickle ICE
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, errors.Wrap(ctx.Err(), "waiting for ICE gathering")
	}
	log.Debug().Msg("ICE gathering complete")

	// The local description now carries all gathered candidates
	return *p.pc.LocalDescription(), nil
}

func (p *pionPeer) SetAnswer(answer webrtc.SessionDescription) error {
	return errors.Wrap(p.pc.SetRemoteDescription(answer), "setting remote description")
}

func (p *pionPeer) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(f)
}

func (p *pionPeer) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	p.pc.OnTrack(f)
}

func (p *pionPeer) StopTracks() {
	for _, receiver := range p.pc.GetReceivers() {
		if err := receiver.Stop(); err != nil {
			log.Debug().Err(err).Msg("Could not stop receiver")
		}
	}
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
