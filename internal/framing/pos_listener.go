// Package framing wires the wire-level transports: an anet-based TCP
// listener for POS terminals and a length-header TCP client for the bank
// host, on either side of the ISO 8583 codec and the router.
package framing

import (
	"context"
	"fmt"
	"time"

	anetserver "github.com/andrei-cloud/anet/server"
	"github.com/rs/zerolog"

	"github.com/kevshake/isogateway/internal/iso8583"
	"github.com/kevshake/isogateway/internal/logging"
)

// Router is the seam the POS listener hands decoded messages through.
type Router interface {
	Route(ctx context.Context, req *iso8583.Message) (*iso8583.Message, error)
}

// zerologAdapter satisfies anet's Logger interface with a zerolog sink.
type zerologAdapter struct {
	log zerolog.Logger
}

func (a zerologAdapter) Print(v ...any)                 { a.log.Info().Msg(fmt.Sprint(v...)) }
func (a zerologAdapter) Printf(format string, v ...any) { a.log.Info().Msgf(format, v...) }
func (a zerologAdapter) Infof(format string, v ...any)  { a.log.Info().Msgf(format, v...) }
func (a zerologAdapter) Warnf(format string, v ...any)  { a.log.Warn().Msgf(format, v...) }
func (a zerologAdapter) Errorf(format string, v ...any) { a.log.Error().Msgf(format, v...) }

// POSListenerConfig configures the terminal-facing listener.
type POSListenerConfig struct {
	Address         string
	MaxConns        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// POSListener accepts terminal connections framed per the POS dictionary
// (ASCII-hex bitmap, LL/LLL ASCII length headers) and routes each decoded
// message.
type POSListener struct {
	cfg    POSListenerConfig
	dict   *iso8583.Dictionary
	router Router
	log    zerolog.Logger
	srv    *anetserver.Server
}

// NewPOSListener builds a listener bound to addr that decodes against the
// POS dictionary and dispatches through router.
func NewPOSListener(cfg POSListenerConfig, router Router, log zerolog.Logger) (*POSListener, error) {
	l := &POSListener{cfg: cfg, dict: iso8583.POSDictionary, router: router, log: log}

	serverCfg := &anetserver.ServerConfig{
		MaxConns:        cfg.MaxConns,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     0,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          zerologAdapter{log: log},
	}
	handler := anetserver.HandlerFunc(l.handle)
	srv, err := anetserver.NewServer(cfg.Address, handler, serverCfg)
	if err != nil {
		return nil, fmt.Errorf("framing: setting up pos listener: %w", err)
	}
	l.srv = srv

	return l, nil
}

// Start begins accepting connections. It blocks until Stop is called or the
// listener fails.
func (l *POSListener) Start() error {
	l.log.Info().Str("address", l.cfg.Address).Msg("pos listener started")

	return l.srv.Start()
}

// Stop gracefully drains in-flight connections and closes the listener.
func (l *POSListener) Stop() error {
	return l.srv.Stop()
}

func (l *POSListener) handle(conn *anetserver.ServerConn, data []byte) ([]byte, error) {
	client := conn.Conn.RemoteAddr().String()

	req, err := iso8583.Unpack(l.dict, data)
	if err != nil {
		l.log.Warn().Str("client_ip", client).Err(err).Msg("pos message decode failed")

		return nil, fmt.Errorf("framing: decoding pos message: %w", err)
	}
	logging.LogTransaction(l.log, "inbound", client, req)

	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.ReadTimeout+l.cfg.WriteTimeout)
	defer cancel()

	resp, err := l.router.Route(ctx, req)
	if err != nil {
		l.log.Error().Str("client_ip", client).Str("mti", req.MTI).Err(err).Msg("routing failed")

		return nil, fmt.Errorf("framing: routing pos message: %w", err)
	}
	if resp == nil {
		return nil, nil
	}
	logging.LogTransaction(l.log, "outbound", client, resp)

	out, err := iso8583.Pack(l.dict, resp)
	if err != nil {
		l.log.Error().Str("client_ip", client).Str("mti", resp.MTI).Err(err).Msg("pos response encode failed")

		return nil, fmt.Errorf("framing: encoding pos response: %w", err)
	}

	return out, nil
}
