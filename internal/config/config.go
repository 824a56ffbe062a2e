// Package config loads the gateway's configuration into an explicit
// snapshot struct via viper. There is no global mutable singleton: each
// component that needs configuration is handed its own Config value by its
// constructor.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the gateway's components consume.
type Config struct {
	Server struct {
		POSAddress  string
		BankAddress string
	}
	Security struct {
		GatewayZonalKey        string
		BankPINKey             string
		DefaultTerminalKey     string
		EnablePinTransposition bool
		EnableCardValidation   bool
		RejectInvalidCard      bool
	}
	KeyChange struct {
		AutoCreate    bool
		KeyLength     int
		KeyExpiryDays int
	}
	Terminal struct {
		EnableKeyChange bool
	}
	Bank struct {
		TimeoutMs   int
		SweepPeriod time.Duration
		Retry       struct {
			MaxAttempts       int
			DelayMs           int
			BackoffMultiplier float64
		}
	}
	Store struct {
		Driver string // "mem" or "sql"
		DSN    string
	}
	Log struct {
		Level  string
		Format string // "human" or "json"
	}
}

// Load reads configuration from ./config.yaml (or $HOME/.isogateway,
// /etc/isogateway) layered over defaults and ISOGATEWAY_-prefixed
// environment variables, and returns an independent snapshot.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.isogateway")
	v.AddConfigPath("/etc/isogateway/")

	setDefaults(v)

	v.SetEnvPrefix("ISOGATEWAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.posaddress", "0.0.0.0:8583")
	v.SetDefault("server.bankaddress", "127.0.0.1:9583")

	v.SetDefault("security.gatewayzonalkey", "")
	v.SetDefault("security.bankpinkey", "")
	v.SetDefault("security.defaultterminalkey", "")
	v.SetDefault("security.enablepintransposition", true)
	v.SetDefault("security.enablecardvalidation", true)
	v.SetDefault("security.rejectinvalidcard", true)

	v.SetDefault("keychange.autocreate", true)
	v.SetDefault("keychange.keylength", 2)
	v.SetDefault("keychange.keyexpirydays", 365)

	v.SetDefault("terminal.enablekeychange", true)

	v.SetDefault("bank.timeoutms", 30000)
	v.SetDefault("bank.sweepperiod", 5*time.Minute)
	v.SetDefault("bank.retry.maxattempts", 3)
	v.SetDefault("bank.retry.delayms", 5000)
	v.SetDefault("bank.retry.backoffmultiplier", 2.0)

	v.SetDefault("store.driver", "mem")
	v.SetDefault("store.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
}
