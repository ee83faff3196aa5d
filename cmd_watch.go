package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voicecapture/internal/events"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print record events published by running servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.toolLogger()
			if err != nil {
				return err
			}
			pub, err := events.Connect(cfg.NATS, log)
			if err != nil {
				return err
			}
			if pub == nil {
				return errors.New("nats.url is not configured")
			}
			defer pub.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s, Ctrl-C to stop\n", pub.Subject(">"))
			return pub.Subscribe(runCtx, func(subject string, ev events.Event) {
				fmt.Fprintf(out, "%s %s %s\n", ev.Time.Local().Format("15:04:05"), subject, string(ev.Payload))
			})
		},
	}
}
