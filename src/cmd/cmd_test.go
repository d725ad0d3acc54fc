package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"vu/ase/roverconsole/src/command"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	root := NewRootCommand(viper.New())
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDrivePressesAndReleases(t *testing.T) {
	var mu sync.Mutex
	var got []command.Command
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drive", r.URL.Path)
		var cmd command.Command
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&cmd))
		mu.Lock()
		got = append(got, cmd)
		mu.Unlock()
	}))
	defer srv.Close()

	_, err := run(t, "drive", "--rover", srv.URL+"/", "--direction", "forward", "--speed", "30", "--hold", "10ms")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Contains(t, got, command.Command{Speed: 30, Direction: command.Forward})
	assert.Contains(t, got, command.Command{Speed: 30})
}

func TestDriveRequiresControl(t *testing.T) {
	_, err := run(t, "drive", "--rover", "http://rover.local")
	assert.Error(t, err)

	_, err = run(t, "drive", "--rover", "http://rover.local", "--direction", "sideways")
	assert.Error(t, err)
}

func TestDriveRequiresRover(t *testing.T) {
	_, err := run(t, "drive", "--turning", "left")
	assert.Error(t, err)
}

func TestStreamURL(t *testing.T) {
	out, err := run(t, "stream-url", "http://cam.local")
	require.NoError(t, err)
	assert.Equal(t, "http://cam.local/?action=stream\n", out)
}

func TestStreamURLProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary=frame")
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\njpeg%d\r\n", i)
		}
		fmt.Fprint(w, "--frame--\r\n")
	}))
	defer srv.Close()

	out, err := run(t, "stream-url", srv.URL, "--probe", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "frame 1: 5 bytes")
	assert.Contains(t, out, "frame 2: 5 bytes")
	assert.NotContains(t, out, "frame 3")
}
