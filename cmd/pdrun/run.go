package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <patch.pd>",
	Short: "Open a patch and print what it sends",
	Long: `Opens the patch, subscribes to the given receivers and runs the audio loop,
printing every event until interrupted or until --duration elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetStringSlice("listen")
		duration, _ := cmd.Flags().GetDuration("duration")

		s, err := openSession(app.cfg, app.log, app.metrics, args[0], listen)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}
		return runLines(ctx, s, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceP("listen", "l", nil, "receiver names to subscribe to (repeatable)")
	runCmd.Flags().DurationP("duration", "d", 0, "stop after this long (0 runs until interrupted)")
}

// runLines drives the session and writes one line per event.
func runLines(ctx context.Context, s *session, w io.Writer) error {
	errc := make(chan error, 1)
	go func() { errc <- s.loop(ctx) }()

	for {
		select {
		case e := <-s.events:
			fmt.Fprintln(w, e)
		case err := <-errc:
			drain(s, w)
			return err
		}
	}
}

func drain(s *session, w io.Writer) {
	for {
		select {
		case e := <-s.events:
			fmt.Fprintln(w, e)
		case <-time.After(10 * time.Millisecond):
			return
		}
	}
}
