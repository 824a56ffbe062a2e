// Package cmd provides the isogateway CLI: serving the gateway plus
// terminal/key/status administrative utilities.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "isogateway",
	Short: "ISO 8583 POS-to-bank payment gateway",
	Long: `isogateway routes ISO 8583 messages between POS terminals and a bank
host: PIN block transposition, card validation, response-code intelligence,
and terminal/key lifecycle management.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}
