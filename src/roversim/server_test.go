package roversim

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postDrive(t *testing.T, srv *httptest.Server, body string) (int, map[string]any) {
	resp, err := http.Post(srv.URL+"/drive", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestDriveRules(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		motors MotorState
		errMsg string
	}{
		{
			name:   "forward",
			body:   `{"speed":70,"direction":"forward","turning":null}`,
			status: http.StatusOK,
			motors: MotorState{Left: Ahead, Right: Ahead, Duty: 70},
		},
		{
			name:   "backward",
			body:   `{"speed":20,"direction":"backward","turning":null}`,
			status: http.StatusOK,
			motors: MotorState{Left: Reverse, Right: Reverse, Duty: 20},
		},
		{
			name:   "turn right",
			body:   `{"speed":50,"direction":null,"turning":"right"}`,
			status: http.StatusOK,
			motors: MotorState{Left: Ahead, Right: Reverse, Duty: 50},
		},
		{
			name:   "turn left with default speed",
			body:   `{"turning":"left"}`,
			status: http.StatusOK,
			motors: MotorState{Left: Reverse, Right: Ahead, Duty: 40},
		},
		{
			name:   "both set",
			body:   `{"speed":50,"direction":"forward","turning":"left"}`,
			status: http.StatusBadRequest,
			motors: stoppedState,
			errMsg: "Only one of 'direction' or 'turning' can be set.",
		},
		{
			name:   "stop",
			body:   `{"speed":50,"direction":null,"turning":null}`,
			status: http.StatusOK,
			motors: stoppedState,
		},
		{
			name:   "invalid direction",
			body:   `{"speed":50,"direction":"up"}`,
			status: http.StatusBadRequest,
			motors: stoppedState,
			errMsg: "Invalid 'direction' value.",
		},
		{
			name:   "invalid turning",
			body:   `{"speed":50,"turning":7}`,
			status: http.StatusBadRequest,
			motors: stoppedState,
			errMsg: "Invalid 'turning' value.",
		},
		{
			name:   "speed out of range",
			body:   `{"speed":101,"direction":"forward"}`,
			status: http.StatusBadRequest,
			motors: stoppedState,
			errMsg: "Speed must be a number between 0 and 100.",
		},
		{
			name:   "explicit null speed",
			body:   `{"speed":null,"direction":"forward"}`,
			status: http.StatusBadRequest,
			motors: stoppedState,
			errMsg: "Speed must be a number between 0 and 100.",
		},
		{
			name:   "speed not a number",
			body:   `{"speed":"fast","direction":"forward"}`,
			status: http.StatusBadRequest,
			motors: stoppedState,
			errMsg: "Speed must be a number between 0 and 100.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewServer()
			srv := httptest.NewServer(sim.Router())
			defer srv.Close()

			status, body := postDrive(t, srv, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.motors, sim.Drivetrain.State())
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, body["error"])
			}
		})
	}
}

func TestDriveStopResponse(t *testing.T) {
	sim := NewServer()
	srv := httptest.NewServer(sim.Router())
	defer srv.Close()

	_, _ = postDrive(t, srv, `{"speed":60,"direction":"forward"}`)
	status, body := postDrive(t, srv, `{"speed":60,"direction":null,"turning":null}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stopped", body["status"])
	assert.Equal(t, stoppedState, sim.Drivetrain.State())
}

func TestDriveMalformedBodyStops(t *testing.T) {
	sim := NewServer()
	srv := httptest.NewServer(sim.Router())
	defer srv.Close()

	_, _ = postDrive(t, srv, `{"speed":60,"direction":"forward"}`)
	status, body := postDrive(t, srv, `{not json`)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, stoppedState, sim.Drivetrain.State())
}

func TestCORSPreflight(t *testing.T) {
	srv := httptest.NewServer(NewServer().Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/drive", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestOfferRejectsAnswerType(t *testing.T) {
	srv := httptest.NewServer(NewServer().Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/offer", "application/json", strings.NewReader(`{"sdp":"v=0","type":"answer"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOfferAnswersWithVideo(t *testing.T) {
	sim := NewServer()
	srv := httptest.NewServer(sim.Router())
	t.Cleanup(func() {
		srv.Close()
		sim.Close()
	})

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer pc.Close()
	_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	require.NoError(t, err)

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	gather := webrtc.GatheringCompletePromise(pc)
	require.NoError(t, pc.SetLocalDescription(offer))
	<-gather

	payload, err := json.Marshal(sessionDescription{SDP: pc.LocalDescription().SDP, Type: "offer"})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/offer", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	answer := sessionDescription{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answer))
	assert.Equal(t, "answer", answer.Type)
	assert.Contains(t, answer.SDP, "m=video")
	assert.Contains(t, answer.SDP, "a=sendonly")
	assert.NoError(t, pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}))
}
