package command

const (
	ButtonTypeDirection = "direction"
	ButtonTypeTurning   = "turning"
)

// A control button, identified by its data-type and data-value
type Button struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Buttons without type or value (the centre dot) do nothing
func (b Button) Inert() bool {
	return b.Type == "" || b.Value == ""
}

// The command a press of this button sends at the given speed
func (b Button) PressCommand(speed int) Command {
	cmd := Command{Speed: speed}
	switch b.Type {
	case ButtonTypeDirection:
		cmd.Direction = Direction(b.Value)
	case ButtonTypeTurning:
		cmd.Turning = Turning(b.Value)
	}
	return cmd
}

// Releasing any button stops the rover
func (b Button) ReleaseCommand(speed int) Command {
	return Command{Speed: speed}
}
