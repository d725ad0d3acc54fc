package cmd

import (
	"fmt"
	"os"

	consoleconfig "vu/ase/roverconsole/src/config"
	"vu/ase/roverconsole/src/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCommand(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "roverconsole",
		Short:        "Operator console for the rover",
		Long:         `roverconsole receives the rover's video over WebRTC, relays drive commands to it and exposes both to a local operator panel.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(v.GetBool(consoleconfig.KeyDebug), os.Stderr)
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("rover", "", "Rover base URL, e.g. http://rover.local:8000")
	_ = v.BindPFlag(consoleconfig.KeyDebug, rootCmd.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag(consoleconfig.KeyRoverURL, rootCmd.PersistentFlags().Lookup("rover"))

	rootCmd.AddCommand(NewServeCommand(v))
	rootCmd.AddCommand(NewDriveCommand(v))
	rootCmd.AddCommand(NewStreamURLCommand(v))
	rootCmd.AddCommand(NewSimulateCommand(v))
	return rootCmd
}

func Execute() error {
	v, err := consoleconfig.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return NewRootCommand(v).Execute()
}
