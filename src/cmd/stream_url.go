package cmd

import (
	"fmt"

	consoleconfig "vu/ase/roverconsole/src/config"
	"vu/ase/roverconsole/src/stream"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewStreamURLCommand(v *viper.Viper) *cobra.Command {
	var probe int

	cmd := &cobra.Command{
		Use:   "stream-url [base-url]",
		Short: "Print the motion-JPEG stream URL for a camera base URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := v.GetString(consoleconfig.KeyStreamURL)
			if len(args) == 1 {
				base = args[0]
			}

			viewer := stream.NewViewer(nil)
			source, ok := viewer.SetBase(base)
			if !ok {
				return errors.New("no stream URL given")
			}
			fmt.Fprintln(cmd.OutOrStdout(), source)

			if probe <= 0 {
				return nil
			}
			seen := 0
			return viewer.Frames(cmd.Context(), func(frame []byte) error {
				seen++
				fmt.Fprintf(cmd.OutOrStdout(), "frame %d: %d bytes\n", seen, len(frame))
				if seen >= probe {
					return stream.ErrStop
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&probe, "probe", 0, "Read this many frames from the stream")
	return cmd
}
