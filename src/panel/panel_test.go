package panel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vu/ase/roverconsole/src/command"
	"vu/ase/roverconsole/src/roversim"
	"vu/ase/roverconsole/src/state"
	"vu/ase/roverconsole/src/stream"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnection struct {
	mu        sync.Mutex
	calls     []string
	status    state.StatusEvent
	listeners []func(state.StatusEvent)
}

func (f *fakeConnection) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeConnection) Reconnect(baseURL string) { f.record("reconnect " + baseURL) }
func (f *fakeConnection) EnsureConnected(baseURL string) { f.record("ensure " + baseURL) }
func (f *fakeConnection) Disconnect() { f.record("disconnect") }

func (f *fakeConnection) Status() state.StatusEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeConnection) Subscribe(fn func(state.StatusEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *fakeConnection) emit(ev state.StatusEvent) {
	f.mu.Lock()
	listeners := f.listeners
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (f *fakeConnection) allCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fixture struct {
	conn   *fakeConnection
	sender *command.Sender
	rover  *roversim.Server
	panel  *httptest.Server
	roverS *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	rover := roversim.NewServer()
	roverSrv := httptest.NewServer(rover.Router())
	t.Cleanup(roverSrv.Close)

	conn := &fakeConnection{status: state.NewStatusEvent(state.Disconnected, 0, "", "")}
	speed := command.NewSpeedField("50")
	sender := command.NewSender(roverSrv.Client(), speed)
	p := New(conn, sender, speed, stream.NewViewer(nil))

	panelSrv := httptest.NewServer(p.Router())
	t.Cleanup(panelSrv.Close)

	return &fixture{conn: conn, sender: sender, rover: rover, panel: panelSrv, roverS: roverSrv}
}

func (f *fixture) do(t *testing.T, method string, path string, body string) *http.Response {
	req, err := http.NewRequest(method, f.panel.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}

func TestConnectUpdatesCommandURL(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/connect", `{"url":"`+f.roverS.URL+`/"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, f.roverS.URL, f.sender.URL())

	f.do(t, http.MethodPost, "/api/ensure", "")
	f.do(t, http.MethodPost, "/api/disconnect", "")
	assert.Equal(t, []string{
		"reconnect " + f.roverS.URL + "/",
		"ensure " + f.roverS.URL,
		"disconnect",
	}, f.conn.allCalls())
}

func TestButtonsDriveTheRover(t *testing.T) {
	f := newFixture(t)
	f.sender.SetURL(f.roverS.URL)

	resp := f.do(t, http.MethodPut, "/api/speed", `{"speed":"80"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/buttons/turning/left/press", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	f.sender.Wait()
	assert.Equal(t, roversim.MotorState{Left: roversim.Reverse, Right: roversim.Ahead, Duty: 80}, f.rover.Drivetrain.State())

	f.do(t, http.MethodPost, "/api/buttons/turning/left/release", "")
	f.sender.Wait()
	assert.Equal(t, roversim.Stopped, f.rover.Drivetrain.State().Left)
	assert.Equal(t, roversim.Stopped, f.rover.Drivetrain.State().Right)
}

func TestUnknownButton(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/buttons/jump/high/press", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/buttons/direction/forward/hold", "").StatusCode)
}

func TestSpeedAcceptsNumbers(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/speed", `{"speed":140}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStreamSource(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/stream", `{"url":"http://cam.local"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, decode(resp, &body))
	assert.Equal(t, "http://cam.local/?action=stream", body["source"])
}

func TestStatusWebsocket(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.panel.URL, "http") + "/ws/status"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	first := map[string]any{}
	require.NoError(t, ws.ReadJSON(&first))
	assert.Equal(t, "disconnected", first["state"])
	assert.Equal(t, "○", first["glyph"])

	f.conn.emit(state.NewStatusEvent(state.Connected, 4, "session", "http://rover.local"))

	next := map[string]any{}
	require.NoError(t, ws.ReadJSON(&next))
	assert.Equal(t, "connected", next["state"])
	assert.Equal(t, "●", next["glyph"])
	assert.EqualValues(t, 4, next["generation"])
}
