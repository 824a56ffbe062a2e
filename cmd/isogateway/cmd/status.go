package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kevshake/isogateway/internal/config"
	"github.com/kevshake/isogateway/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Interactive dashboard of active terminals and their keys",
	Long:  `Launches a terminal dashboard listing active terminals, their key reference, and key-change counts, refreshed every two seconds. This is a local admin view, not a network-exposed endpoint.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}

		p := tea.NewProgram(tui.NewStatusModel(repo))
		_, err = p.Run()

		return err
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
