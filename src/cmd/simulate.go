package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	consoleconfig "vu/ase/roverconsole/src/config"
	"vu/ase/roverconsole/src/roversim"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func NewSimulateCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated rover exposing /drive and /offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := v.GetString(consoleconfig.KeySimulatorListen)
			sim := roversim.NewServer()
			defer sim.Close()

			server := &http.Server{
				Addr:              addr,
				Handler:           sim.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("address", addr).Msg("Simulated rover listening")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return errors.Wrap(err, "simulated rover")
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().String("listen", "", "Listen address of the simulated rover")
	_ = v.BindPFlag(consoleconfig.KeySimulatorListen, cmd.Flags().Lookup("listen"))
	return cmd
}
