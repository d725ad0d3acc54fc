package roversim

import (
	"sync"

	"vu/ase/roverconsole/src/command"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Rotation string

const (
	Stopped Rotation = "stopped"
	Ahead   Rotation = "forward"
	Reverse Rotation = "reverse"
)

// What the H-bridge is currently told to do. Side A drives the left wheels, side B the right wheels
type MotorState struct {
	Left  Rotation `json:"left"`
	Right Rotation `json:"right"`
	Duty  float64  `json:"duty"`
}

var stoppedState = MotorState{Left: Stopped, Right: Stopped}

// Drivetrain models the two PWM driven motors of the rover
type Drivetrain struct {
	log zerolog.Logger

	mu    sync.Mutex
	state MotorState
}

func NewDrivetrain() *Drivetrain {
	return &Drivetrain{
		log:   log.With().Str("component", "drivetrain").Logger(),
		state: stoppedState,
	}
}

func (d *Drivetrain) State() MotorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Drivetrain) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = stoppedState
}

// Always stops first, then sets the rotation of both sides. Direction wins over turning
func (d *Drivetrain) Drive(direction command.Direction, turning command.Turning, speed float64) MotorState {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = stoppedState
	switch {
	case direction == command.Forward:
		d.state.Left, d.state.Right = Ahead, Ahead
	case direction == command.Backward:
		d.state.Left, d.state.Right = Reverse, Reverse
	case turning == command.Right:
		d.state.Left, d.state.Right = Ahead, Reverse
	case turning == command.Left:
		d.state.Left, d.state.Right = Reverse, Ahead
	}
	d.state.Duty = speed

	d.log.Debug().Str("left", string(d.state.Left)).Str("right", string(d.state.Right)).Float64("duty", speed).Msg("Drivetrain updated")
	return d.state
}
