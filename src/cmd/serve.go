package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vu/ase/roverconsole/src/command"
	consoleconfig "vu/ase/roverconsole/src/config"
	"vu/ase/roverconsole/src/panel"
	"vu/ase/roverconsole/src/publisher"
	"vu/ase/roverconsole/src/serverconnection"
	"vu/ase/roverconsole/src/stream"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func NewServeCommand(v *viper.Viper) *cobra.Command {
	var speed string
	var recordDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the rover and serve the operator panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := consoleconfig.Load(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, speed, recordDir)
		},
	}

	cmd.Flags().String("stream", "", "Camera stream base URL")
	cmd.Flags().String("listen", "", "Operator panel listen address")
	cmd.Flags().String("tap", "", "ZeroMQ address to publish dispatched commands on, e.g. tcp://*:5556")
	_ = v.BindPFlag(consoleconfig.KeyStreamURL, cmd.Flags().Lookup("stream"))
	_ = v.BindPFlag(consoleconfig.KeyListenAddress, cmd.Flags().Lookup("listen"))
	_ = v.BindPFlag(consoleconfig.KeyTapAddress, cmd.Flags().Lookup("tap"))

	cmd.Flags().StringVar(&speed, "speed", "50", "Initial speed (0-100)")
	cmd.Flags().StringVar(&recordDir, "record", "", "Record the received video into this directory")
	return cmd
}

func serve(parent context.Context, cfg consoleconfig.Config, speedRaw string, recordDir string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	speed := command.NewSpeedField(speedRaw)
	sender := command.NewSender(nil, speed)
	sender.SetURL(cfg.RoverURL)

	opts := serverconnection.Options{
		PeerConfig:         consoleconfig.PeerConnectionConfig(cfg.ICEServers),
		RetryOnStateChange: cfg.RetryOnStateChange,
		RetryOnError:       cfg.RetryOnError,
		OfferTimeout:       cfg.OfferTimeout,
	}
	if recordDir != "" {
		opts.Sink = &serverconnection.RecorderSink{Dir: recordDir}
	}
	manager := serverconnection.NewManager(opts)

	viewer := stream.NewViewer(nil)
	viewer.SetBase(cfg.StreamURL)

	p := panel.New(manager, sender, speed, viewer)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.TapAddress != "" {
		tap := publisher.NewTap(cfg.TapQueue)
		sender.Observe(tap.Offer)
		g.Go(func() error {
			return tap.Run(ctx, cfg.TapAddress)
		})
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           p.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		log.Info().Str("address", cfg.ListenAddress).Msg("Operator panel listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "operator panel")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	manager.Connect(cfg.RoverURL)

	err := g.Wait()
	log.Info().Msg("Shutting down")
	manager.Disconnect()
	sender.Wait()
	return err
}
