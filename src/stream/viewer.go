package stream

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	consoleconfig "vu/ase/roverconsole/src/config"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Returned by a frame handler to stop reading without an error
var ErrStop = errors.New("stop reading frames")

// The mjpg-streamer endpoint for the given base URL, or the empty string if there is none
func StreamURL(base string) string {
	return consoleconfig.Endpoint(base, consoleconfig.StreamQuery)
}

// Viewer points at the motion-JPEG stream of the rover camera. It never retries
type Viewer struct {
	client *http.Client
	log    zerolog.Logger

	mu     sync.RWMutex
	source string
}

func NewViewer(client *http.Client) *Viewer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Viewer{
		client: client,
		log:    log.With().Str("component", "stream").Logger(),
	}
}

// Derives the stream source from user input. Empty input keeps the current source
func (v *Viewer) SetBase(input string) (string, bool) {
	src := StreamURL(input)

	v.mu.Lock()
	defer v.mu.Unlock()
	if src == "" {
		return v.source, false
	}
	v.source = src
	v.log.Info().Str("source", src).Msg("Stream source changed")
	return src, true
}

func (v *Viewer) Source() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.source
}

// Reads the multipart stream at the current source and hands every JPEG frame to fn until fn fails, the stream ends or ctx is done
func (v *Viewer) Frames(ctx context.Context, fn func(frame []byte) error) error {
	src := v.Source()
	if src == "" {
		return errors.New("no stream source set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return errors.Wrap(err, "creating stream request")
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "opening stream %s", src)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("stream %s returned status %d", src, resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return errors.Wrap(err, "parsing stream content type")
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return errors.Errorf("stream is %s, not a multipart stream", mediaType)
	}

	reader := multipart.NewReader(resp.Body, strings.TrimPrefix(params["boundary"], "--"))
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "reading stream part")
		}

		frame, err := io.ReadAll(part)
		if err != nil {
			return errors.Wrap(err, "reading frame")
		}
		if err = fn(frame); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}
