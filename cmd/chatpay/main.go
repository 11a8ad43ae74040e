package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anatoly-dev/go-chatpay/cmd/chatpay/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatpay",
		Short: "Real-time chat and wallet server",
		Long:  "A real-time coordination server that pairs chat users over WebSockets, tracks per-user balances and pushes a notification on every balance change",
	}

	rootCmd.AddCommand(commands.NewServeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
