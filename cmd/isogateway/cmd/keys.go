package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kevshake/isogateway/internal/tdes"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Key generation utilities",
}

var generateKeyCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random TDES key and print its KCV",
	Long:  `Generate a random double- or triple-length TDES key and print it alongside its Key Check Value, without persisting it to any terminal.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		length, _ := cmd.Flags().GetInt("length")
		if length != 16 && length != 24 {
			return fmt.Errorf("length must be 16 (double) or 24 (triple)")
		}

		key, err := tdes.GenerateKey(length)
		if err != nil {
			return fmt.Errorf("generating key: %w", err)
		}
		kcv, err := tdes.Kcv(key, 6)
		if err != nil {
			return fmt.Errorf("computing kcv: %w", err)
		}

		cmd.Printf("Key: %s\n", key)
		cmd.Printf("KCV: %s\n", kcv)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(generateKeyCmd)

	generateKeyCmd.Flags().Int("length", 16, "Key length in bytes (16=double, 24=triple)")
}
