package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <patch.pd> <receiver> [message...]",
	Short: "Send one message into a patch and print the response",
	Long: `Opens the patch, sends the message to the receiver, runs one audio buffer and
prints whatever arrived at the --listen receivers or the console.

The message follows message box rules: "440" is a float, "bang" a bang,
"1 2 3" a list and "set 1 2" a message with selector "set".`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetStringSlice("listen")

		s, err := openSession(app.cfg, app.log, app.metrics, args[0], listen)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.send(args[1], strings.Join(args[2:], " ")); err != nil {
			return err
		}
		if err := s.step(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for {
			select {
			case e := <-s.events:
				fmt.Fprintln(out, e)
			default:
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringSliceP("listen", "l", nil, "receiver names to subscribe to (repeatable)")
}
