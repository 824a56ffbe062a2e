package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kevshake/isogateway/internal/config"
	"github.com/kevshake/isogateway/internal/keychange"
)

var terminalsCmd = &cobra.Command{
	Use:   "terminals",
	Short: "Terminal lifecycle operations",
}

var keyChangeCmd = &cobra.Command{
	Use:   "keychange <terminal-id>",
	Short: "Run the key-change protocol for a terminal",
	Long:  `Run the key-change protocol for a terminal, auto-registering it if it does not yet exist and the auto-create policy allows it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		merchantID, _ := cmd.Flags().GetString("merchant")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}

		result, err := keychange.Process(context.Background(), repo, keychange.Config{
			AutoCreate:    cfg.KeyChange.AutoCreate,
			KeyLength:     cfg.KeyChange.KeyLength,
			KeyExpiryDays: cfg.KeyChange.KeyExpiryDays,
		}, args[0], merchantID)
		if err != nil {
			return fmt.Errorf("key change failed: %w", err)
		}

		cmd.Printf("Terminal: %s\n", result.Terminal.TerminalID)
		cmd.Printf("Status: %s\n", result.Terminal.Status)
		cmd.Printf("Key ID: %s\n", result.KeyID)
		cmd.Printf("Key (masked): %s\n", result.MaskedValue)
		cmd.Printf("Key change count: %d\n", result.Terminal.KeyChangeCount)

		return nil
	},
}

var terminalStatusCmd = &cobra.Command{
	Use:   "status <terminal-id>",
	Short: "Print a terminal's current status and key reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}

		t, err := repo.FindTerminal(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("terminal lookup failed: %w", err)
		}

		cmd.Printf("Terminal: %s\n", t.TerminalID)
		cmd.Printf("Merchant: %s\n", t.MerchantID)
		cmd.Printf("Status: %s\n", t.Status)
		cmd.Printf("Key ref: %s\n", t.KeyRef)
		cmd.Printf("Key change count: %d\n", t.KeyChangeCount)
		cmd.Printf("Last activity: %s\n", t.LastActivity)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(terminalsCmd)
	terminalsCmd.AddCommand(keyChangeCmd)
	terminalsCmd.AddCommand(terminalStatusCmd)

	keyChangeCmd.Flags().String("merchant", "", "Merchant ID to associate with the terminal")
}
