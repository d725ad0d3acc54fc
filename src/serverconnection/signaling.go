package serverconnection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	consoleconfig "vu/ase/roverconsole/src/config"

	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
)

var ErrNoURL = errors.New("no rover URL set")

// Error body some rover endpoints return instead of an answer
type EndpointError struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d (%s)", e.StatusCode, e.URL)
}

// Wire format of both the offer and the answer
type sessionDescription struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Posts the offer to {base}/offer and returns the rover's answer
func SendOffer(ctx context.Context, client *http.Client, baseURL string, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	offerURL := consoleconfig.Endpoint(baseURL, consoleconfig.OfferPath)
	if offerURL == "" {
		return webrtc.SessionDescription{}, ErrNoURL
	}

	payload, err := json.Marshal(sessionDescription{
		SDP:  offer.SDP,
		Type: offer.Type.String(),
	})
	if err != nil {
		return webrtc.SessionDescription{}, errors.Wrap(err, "encoding offer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, offerURL, bytes.NewReader(payload))
	if err != nil {
		return webrtc.SessionDescription{}, errors.Wrap(err, "creating offer request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return webrtc.SessionDescription{}, errors.Wrapf(err, "posting offer to %s", offerURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return webrtc.SessionDescription{}, errors.Wrap(err, "reading answer")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return webrtc.SessionDescription{}, &HTTPStatusError{URL: offerURL, StatusCode: resp.StatusCode}
	}

	// Is this an error?
	errResp := EndpointError{}
	if err = json.Unmarshal(body, &errResp); err == nil && errResp.Error {
		return webrtc.SessionDescription{}, errors.Errorf("could not connect, rover returned: %s", errResp.Message)
	}

	answer := sessionDescription{}
	if err = json.Unmarshal(body, &answer); err != nil {
		return webrtc.SessionDescription{}, errors.Wrap(err, "decoding answer")
	}

	sdpType := webrtc.NewSDPType(answer.Type)
	if sdpType != webrtc.SDPTypeAnswer {
		return webrtc.SessionDescription{}, errors.Errorf("expected an answer, rover returned type %q", answer.Type)
	}

	return webrtc.SessionDescription{Type: sdpType, SDP: answer.SDP}, nil
}
