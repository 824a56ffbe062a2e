package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kevshake/isogateway/internal/config"
	"github.com/kevshake/isogateway/internal/dispatcher"
	"github.com/kevshake/isogateway/internal/framing"
	"github.com/kevshake/isogateway/internal/keychange"
	"github.com/kevshake/isogateway/internal/logging"
	"github.com/kevshake/isogateway/internal/router"
	"github.com/kevshake/isogateway/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway's POS listener and bank dispatcher",
	Long:  `Start the gateway: accept POS terminal connections, route transactions, and forward financial requests to the bank host.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		gwLog := logging.New(cfg.Log.Level, cfg.Log.Format)

		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}

		r := router.New(router.Config{
			GatewayZonalKey:        cfg.Security.GatewayZonalKey,
			DefaultTerminalKey:     cfg.Security.DefaultTerminalKey,
			EnablePinTransposition: cfg.Security.EnablePinTransposition,
			EnableCardValidation:   cfg.Security.EnableCardValidation,
			RejectInvalidCard:      cfg.Security.RejectInvalidCard,
			EnableKeyChange:        cfg.Terminal.EnableKeyChange,
			KeyChange: keychange.Config{
				AutoCreate:    cfg.KeyChange.AutoCreate,
				KeyLength:     cfg.KeyChange.KeyLength,
				KeyExpiryDays: cfg.KeyChange.KeyExpiryDays,
			},
		}, repo, nil)
		r.SetLogger(gwLog)

		d := dispatcher.New(dispatcher.Config{
			BankAddress: cfg.Server.BankAddress,
			Timeout:     time.Duration(cfg.Bank.TimeoutMs) * time.Millisecond,
			Retry: dispatcher.RetryConfig{
				MaxAttempts:       cfg.Bank.Retry.MaxAttempts,
				Delay:             time.Duration(cfg.Bank.Retry.DelayMs) * time.Millisecond,
				BackoffMultiplier: cfg.Bank.Retry.BackoffMultiplier,
			},
			SweepPeriod:     cfg.Bank.SweepPeriod,
			GatewayZonalKey: cfg.Security.GatewayZonalKey,
			BankPINKey:      cfg.Security.BankPINKey,
		}, repo, r, gwLog)
		r.SetBankSubmitter(d)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := d.StartSweep(ctx); err != nil {
			return err
		}
		defer d.StopSweep()

		listener, err := framing.NewPOSListener(framing.POSListenerConfig{
			Address:         cfg.Server.POSAddress,
			MaxConns:        100,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		}, r, gwLog)
		if err != nil {
			return err
		}

		var stopOnce sync.Once
		stopChan := make(chan os.Signal, 1)
		signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-stopChan
			log.Info().Msgf("signal %v received, shutting down gateway", sig)
			stopOnce.Do(func() {
				if err := listener.Stop(); err != nil {
					log.Error().Err(err).Msg("failed to stop pos listener")
				}
			})
		}()

		return listener.Start()
	},
}

func openRepository(cfg *config.Config) (store.Repository, error) {
	if cfg.Store.Driver == "sql" {
		return store.OpenSQLRepository(cfg.Store.DSN)
	}

	return store.NewMemRepository(), nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
