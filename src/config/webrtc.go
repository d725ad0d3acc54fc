package consoleconfig

import (
	"github.com/pion/webrtc/v4"
)

const (
	// Path segments appended to the rover base URL
	OfferPath = "/offer"
	DrivePath = "/drive"

	// Query appended to the stream base URL by mjpg-streamer
	StreamQuery = "/?action=stream"
)

// Builds the peer connection configuration. With no ICE servers, communication is limited to the LAN
func PeerConnectionConfig(iceServers []string) webrtc.Configuration {
	conf := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{},
	}
	if len(iceServers) > 0 {
		conf.ICEServers = append(conf.ICEServers, webrtc.ICEServer{
			URLs: iceServers,
		})
	}
	return conf
}
