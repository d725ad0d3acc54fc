package serverconnection

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Consumes an inbound track until it ends. Called on a goroutine owned by the peer connection
type TrackSink interface {
	HandleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

type TrackSinkFunc func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

func (f TrackSinkFunc) HandleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	f(track, receiver)
}

// Reads and discards RTP, so that the receive buffers never fill up
type DrainSink struct {
	packets atomic.Uint64
}

func (s *DrainSink) HandleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	log.Info().Str("codec", track.Codec().MimeType).Str("track", track.ID()).Msg("Draining video track")
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			log.Debug().Err(err).Str("track", track.ID()).Msg("Track ended")
			return
		}
		s.packets.Add(1)
	}
}

func (s *DrainSink) Packets() uint64 {
	return s.packets.Load()
}

type rtpWriter interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

// Writes every received track to a file in Dir: VP8 as IVF, H264 as an Annex-B stream
type RecorderSink struct {
	Dir string

	// Keeps file names unique when several tracks start within the same second
	seq atomic.Uint64
}

func (s *RecorderSink) HandleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	writer, path, err := s.open(track.Codec().MimeType)
	if err != nil {
		log.Err(err).Str("codec", track.Codec().MimeType).Msg("Could not record track, draining instead")
		(&DrainSink{}).HandleTrack(track, nil)
		return
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Err(err).Str("path", path).Msg("Could not close recording")
		}
	}()

	log.Info().Str("path", path).Msg("Recording video track")
	for {
		packet, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Recording ended")
			return
		}
		if err = writer.WriteRTP(packet); err != nil {
			log.Err(err).Str("path", path).Msg("Could not write packet")
			return
		}
	}
}

func (s *RecorderSink) open(mimeType string) (rtpWriter, string, error) {
	stamp := fmt.Sprintf("%s-%d", time.Now().Format("20060102-150405"), s.seq.Add(1))

	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP8):
		path := filepath.Join(s.Dir, fmt.Sprintf("rover-%s.ivf", stamp))
		w, err := ivfwriter.New(path)
		return w, path, errors.Wrap(err, "opening IVF writer")
	case strings.EqualFold(mimeType, webrtc.MimeTypeH264):
		path := filepath.Join(s.Dir, fmt.Sprintf("rover-%s.h264", stamp))
		w, err := h264writer.New(path)
		return w, path, errors.Wrap(err, "opening H264 writer")
	default:
		return nil, "", errors.Errorf("unsupported codec %s", mimeType)
	}
}
