package command

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	consoleconfig "vu/ase/roverconsole/src/config"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Commands are perishable, there is no point in waiting long for one
const sendTimeout = 5 * time.Second

// Anything that can report the current speed setting
type SpeedSource interface {
	Speed() int
}

// Holds the raw content of the speed input, parsed on every read
type SpeedField struct {
	mu  sync.RWMutex
	raw string
}

func NewSpeedField(raw string) *SpeedField {
	return &SpeedField{raw: raw}
}

func (f *SpeedField) Set(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = raw
}

func (f *SpeedField) Speed() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ParseSpeed(f.raw)
}

// Sender dispatches drive commands to {base}/drive without waiting for, or retrying on, the outcome
type Sender struct {
	client *http.Client
	speed  SpeedSource
	log    zerolog.Logger

	mu        sync.RWMutex
	baseURL   string
	observers []func(Command)

	inflight sync.WaitGroup
}

func NewSender(client *http.Client, speed SpeedSource) *Sender {
	if client == nil {
		client = http.DefaultClient
	}
	return &Sender{
		client: client,
		speed:  speed,
		log:    log.With().Str("component", "command").Logger(),
	}
}

func (s *Sender) SetURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = consoleconfig.NormalizeBase(baseURL)
}

func (s *Sender) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// Observers see every command that is actually dispatched
func (s *Sender) Observe(f func(Command)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, f)
}

func (s *Sender) Press(b Button) {
	if b.Inert() {
		return
	}
	s.Send(b.PressCommand(s.speed.Speed()))
}

func (s *Sender) Release(b Button) {
	if b.Inert() {
		return
	}
	s.Send(b.ReleaseCommand(s.speed.Speed()))
}

// Fire and forget. The request is detached from the caller, so a final stop survives the caller going away
func (s *Sender) Send(cmd Command) {
	s.mu.RLock()
	driveURL := consoleconfig.Endpoint(s.baseURL, consoleconfig.DrivePath)
	observers := s.observers
	s.mu.RUnlock()

	if driveURL == "" {
		s.log.Warn().Msg("No rover URL set")
		return
	}

	cmd.Speed = ClampSpeed(cmd.Speed)
	for _, f := range observers {
		f(cmd)
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.post(driveURL, cmd); err != nil {
			s.log.Err(err).Msg("Failed to send request")
		}
	}()
}

// Blocks until all dispatched commands have completed
func (s *Sender) Wait() {
	s.inflight.Wait()
}

func (s *Sender) post(driveURL string, cmd Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return errors.Wrap(err, "encoding command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, driveURL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "creating drive request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "posting command to %s", driveURL)
	}
	_ = resp.Body.Close()

	s.log.Debug().Int("status", resp.StatusCode).Int("speed", cmd.Speed).Str("direction", string(cmd.Direction)).Str("turning", string(cmd.Turning)).Msg("Command sent")
	return nil
}
