package cmd

import (
	"time"

	"vu/ase/roverconsole/src/command"
	consoleconfig "vu/ase/roverconsole/src/config"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewDriveCommand(v *viper.Viper) *cobra.Command {
	var speed string
	var direction string
	var turning string
	var hold time.Duration

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Press a control for a while, then release it",
		Example: `  roverconsole drive --rover http://rover.local:8000 --direction forward --speed 60 --hold 2s
  roverconsole drive --rover http://rover.local:8000 --turning left`,
		RunE: func(cmd *cobra.Command, args []string) error {
			button, err := buttonFromFlags(direction, turning)
			if err != nil {
				return err
			}

			sender := command.NewSender(nil, command.NewSpeedField(speed))
			sender.SetURL(v.GetString(consoleconfig.KeyRoverURL))
			if sender.URL() == "" {
				return errors.New("no rover URL set, use --rover or ROVER_URL")
			}

			sender.Press(button)
			select {
			case <-time.After(hold):
			case <-cmd.Context().Done():
			}
			sender.Release(button)
			sender.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&speed, "speed", "50", "Speed (0-100)")
	cmd.Flags().StringVar(&direction, "direction", "", "forward or backward")
	cmd.Flags().StringVar(&turning, "turning", "", "left or right")
	cmd.Flags().DurationVar(&hold, "hold", time.Second, "How long to hold the control")
	cmd.MarkFlagsMutuallyExclusive("direction", "turning")
	return cmd
}

func buttonFromFlags(direction string, turning string) (command.Button, error) {
	switch {
	case direction == string(command.Forward) || direction == string(command.Backward):
		return command.Button{Type: command.ButtonTypeDirection, Value: direction}, nil
	case turning == string(command.Left) || turning == string(command.Right):
		return command.Button{Type: command.ButtonTypeTurning, Value: turning}, nil
	case direction == "" && turning == "":
		return command.Button{}, errors.New("one of --direction or --turning is required")
	default:
		return command.Button{}, errors.Errorf("invalid control %q", direction+turning)
	}
}
