package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "labchat",
		Short:         "labchat: a text-protocol chat server with durable history",
		Long:          "labchat runs a TCP chat server with nickname negotiation, private and group messaging, photo attachments and an append-only replayable history log, plus an optional websocket bridge for browsers.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}
