package command

import (
	"encoding/json"
	"strings"
)

const (
	MinSpeed = 0
	MaxSpeed = 100
)

type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

type Turning string

const (
	Left  Turning = "left"
	Right Turning = "right"
)

// Control command as understood by the rover's /drive endpoint. An empty direction or turning is sent as null
type Command struct {
	Speed     int       `json:"speed"`
	Direction Direction `json:"direction"`
	Turning   Turning   `json:"turning"`
}

// A command without direction and turning stops the motors
func (c Command) IsStop() bool {
	return c.Direction == "" && c.Turning == ""
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return marshalOptional(string(d))
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	s, err := unmarshalOptional(data)
	*d = Direction(s)
	return err
}

func (t Turning) MarshalJSON() ([]byte, error) {
	return marshalOptional(string(t))
}

func (t *Turning) UnmarshalJSON(data []byte) error {
	s, err := unmarshalOptional(data)
	*t = Turning(s)
	return err
}

func marshalOptional(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}

func unmarshalOptional(data []byte) (string, error) {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

// Parses a speed the way an integer input field is read: leading integer prefix, 0 when there is none, clamped to [0,100]
func ParseSpeed(raw string) int {
	s := strings.TrimSpace(raw)
	negative := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}

	value, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		digits++
		// anything above the maximum clamps anyway
		if value <= MaxSpeed {
			value = value*10 + int(r-'0')
		}
	}
	if digits == 0 {
		return 0
	}
	if negative {
		value = -value
	}
	return ClampSpeed(value)
}

func ClampSpeed(speed int) int {
	return max(MinSpeed, min(MaxSpeed, speed))
}
