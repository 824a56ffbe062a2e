// Package dispatcher forwards POS transactions to the bank host over a
// single persistent connection: a bounded submission queue feeds a
// dedicated send loop, a dedicated receive loop demultiplexes responses
// back to their callers by (STAN, local date), and a periodic sweep
// expires keys, flags orphaned/stale terminals, reports duplicate key
// values, and cleans up any in-flight correlation entry past its deadline.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kevshake/isogateway/internal/framing"
	"github.com/kevshake/isogateway/internal/iso8583"
	"github.com/kevshake/isogateway/internal/logging"
	"github.com/kevshake/isogateway/internal/pintranspose"
	"github.com/kevshake/isogateway/internal/respcode"
	"github.com/kevshake/isogateway/internal/router"
	"github.com/kevshake/isogateway/internal/store"
)

// bankFields are copied verbatim from the POS request into the bank
// request before forwarding.
var bankFields = []int{2, 3, 4, 7, 11, 12, 13, 14, 22, 25, 35, 41, 42, 43, 49}

// queueDepth bounds the number of bank requests awaiting a send-loop slot.
const queueDepth = 64

// RetryConfig controls the exponential backoff applied between bank
// communication attempts.
type RetryConfig struct {
	MaxAttempts       int
	Delay             time.Duration
	BackoffMultiplier float64
}

// Config is the dispatcher's full configuration.
type Config struct {
	BankAddress     string
	Timeout         time.Duration
	Retry           RetryConfig
	SweepPeriod     time.Duration // cron sweep interval; 0 disables the sweep
	GatewayZonalKey string        // key F52 arrives encrypted under
	BankPINKey      string        // key F52 must be re-encrypted under before forwarding
}

// PruneableRouter is the seam the sweep uses to age out the duplicate
// detection cache; satisfied by internal/router.Router.
type PruneableRouter interface {
	PruneDuplicates(now time.Time)
}

// inFlight is one transaction awaiting a bank response, correlated by
// (F11, F13), the gateway's Transaction-in-flight record.
type inFlight struct {
	replyCh  chan *iso8583.Message
	errCh    chan error
	deadline time.Time
}

// submission is one bank request waiting for the send loop to write it.
type submission struct {
	msg *iso8583.Message
	key string
}

// Dispatcher forwards POS messages to the bank host and satisfies
// internal/router.BankSubmitter.
type Dispatcher struct {
	cfg    Config
	client *framing.BankClient
	repo   store.Repository
	router PruneableRouter
	log    zerolog.Logger
	cron   *cron.Cron

	ioStart sync.Once
	stopCh  chan struct{}
	queue   chan submission

	pendingMu sync.Mutex
	pending   map[string]*inFlight
}

// New builds a Dispatcher targeting cfg.BankAddress.
func New(cfg Config, repo store.Repository, router PruneableRouter, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		client:  framing.NewBankClient(cfg.BankAddress),
		repo:    repo,
		router:  router,
		log:     log,
		stopCh:  make(chan struct{}),
		pending: make(map[string]*inFlight),
	}
}

func rrn() string {
	ms := time.Now().UnixMilli() % 1_000_000_000_000

	return fmt.Sprintf("%012d", ms)
}

func transmissionTimestamp() string {
	return time.Now().UTC().Format("0102150405")
}

func correlationKey(msg *iso8583.Message) string {
	stan, _ := msg.Get(11)
	date, _ := msg.Get(13)

	return stan + "|" + date
}

// translateToBank copies the POS message's forwarded fields into a new bank
// message, re-encrypting F52 (if present) from the gateway-zonal key to the
// bank's own PIN key so the receiving host can decrypt it.
func (d *Dispatcher) translateToBank(posMsg *iso8583.Message) (*iso8583.Message, error) {
	bankMsg := iso8583.New(posMsg.MTI)
	for _, n := range bankFields {
		if v, ok := posMsg.Get(n); ok {
			bankMsg.Set(n, v)
		}
	}
	if pin, ok := posMsg.Get(52); ok {
		pan, _ := posMsg.Get(2)
		bankPin, err := pintranspose.Transpose(d.cfg.GatewayZonalKey, d.cfg.BankPINKey, pin, pan)
		if err != nil {
			return nil, fmt.Errorf("dispatcher: transposing pin to bank key: %w", err)
		}
		bankMsg.Set(52, bankPin)
	}
	bankMsg.Set(37, rrn())
	bankMsg.Set(7, transmissionTimestamp())

	return bankMsg, nil
}

// ensureIO lazily starts the send and receive loops that own the shared
// bank connection on the first Submit; there is no separate start call.
func (d *Dispatcher) ensureIO() {
	d.ioStart.Do(func() {
		d.queue = make(chan submission, queueDepth)
		go d.sendLoop()
		go d.recvLoop()
	})
}

// Stop halts the send/receive loops. Safe to call even if Submit was never
// called (the loops were never started).
func (d *Dispatcher) Stop() {
	close(d.stopCh)
}

func (d *Dispatcher) sendLoop() {
	for {
		select {
		case <-d.stopCh:
			return
		case sub := <-d.queue:
			if err := d.client.Send(sub.msg); err != nil {
				d.failPending(sub.key, fmt.Errorf("dispatcher: sending bank request: %w", err))
			}
		}
	}
}

func (d *Dispatcher) recvLoop() {
	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		resp, err := d.client.Receive()
		if err != nil {
			if !errors.Is(err, framing.ErrNoConnection) {
				d.failAllPending(fmt.Errorf("dispatcher: bank connection lost: %w", err))
			}
			select {
			case <-d.stopCh:
				return
			case <-time.After(50 * time.Millisecond):
			}

			continue
		}

		key := correlationKey(resp)
		d.pendingMu.Lock()
		w, ok := d.pending[key]
		if ok {
			delete(d.pending, key)
		}
		d.pendingMu.Unlock()
		if !ok {
			d.log.Warn().Str("correlation_key", key).Msg("bank response matched no in-flight request")

			continue
		}

		if code, ok := resp.Get(39); ok {
			entry := respcode.BankCode(code)
			d.log.Info().Str("bank_response_code", code).Str("description", entry.Description).Msg("bank response received")
		}
		logging.LogTransaction(d.log, "inbound", "bank", resp)
		w.replyCh <- resp
	}
}

func (d *Dispatcher) failPending(key string, err error) {
	d.pendingMu.Lock()
	w, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.pendingMu.Unlock()
	if ok {
		w.errCh <- err
	}
}

// failAllPending drops every in-flight correlation entry and delivers err
// to each waiter; called when the shared connection itself is lost, since
// none of them can receive a response on a connection that no longer
// exists.
func (d *Dispatcher) failAllPending(err error) {
	d.pendingMu.Lock()
	waiters := d.pending
	d.pending = make(map[string]*inFlight)
	d.pendingMu.Unlock()

	for _, w := range waiters {
		select {
		case w.errCh <- err:
		default:
		}
	}
}

// exchange registers one in-flight correlation entry, enqueues the bank
// request, and waits for the matching response, a send failure, the
// caller's context, or the configured deadline, whichever comes first.
func (d *Dispatcher) exchange(ctx context.Context, bankMsg *iso8583.Message) (*iso8583.Message, error) {
	key := correlationKey(bankMsg)
	w := &inFlight{
		replyCh:  make(chan *iso8583.Message, 1),
		errCh:    make(chan error, 1),
		deadline: time.Now().Add(d.cfg.Timeout),
	}

	d.pendingMu.Lock()
	d.pending[key] = w
	d.pendingMu.Unlock()

	logging.LogTransaction(d.log, "outbound", "bank", bankMsg)

	select {
	case d.queue <- submission{msg: bankMsg, key: key}:
	default:
		d.pendingMu.Lock()
		delete(d.pending, key)
		d.pendingMu.Unlock()

		return nil, fmt.Errorf("dispatcher: bank submission queue full")
	}

	select {
	case resp := <-w.replyCh:
		return resp, nil
	case err := <-w.errCh:
		return nil, err
	case <-ctx.Done():
		d.pendingMu.Lock()
		delete(d.pending, key)
		d.pendingMu.Unlock()

		return nil, ctx.Err()
	case <-time.After(d.cfg.Timeout):
		d.pendingMu.Lock()
		delete(d.pending, key)
		d.pendingMu.Unlock()

		return nil, router.ErrBankTimeout
	}
}

// Submit translates posMsg into the bank dictionary and sends it with
// retry/backoff over the shared bank connection, satisfying
// internal/router.BankSubmitter.
func (d *Dispatcher) Submit(ctx context.Context, posMsg *iso8583.Message) (*iso8583.Message, error) {
	bankMsg, err := d.translateToBank(posMsg)
	if err != nil {
		return nil, err
	}
	d.ensureIO()

	delay := d.cfg.Retry.Delay
	var lastErr error
	for attempt := 1; attempt <= d.cfg.Retry.MaxAttempts; attempt++ {
		resp, err := d.exchange(ctx, bankMsg)
		if err == nil {
			d.log.Info().Int("attempt", attempt).Msg("bank exchange succeeded")

			return resp, nil
		}
		lastErr = err
		d.log.Warn().Int("attempt", attempt).Err(err).Msg("bank exchange failed")

		if attempt == d.cfg.Retry.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * d.cfg.Retry.BackoffMultiplier)
	}

	if lastErr == router.ErrBankTimeout {
		d.log.Error().Int("attempts", d.cfg.Retry.MaxAttempts).Msg("bank timed out on every attempt")

		return nil, router.ErrBankTimeout
	}

	d.log.Error().Int("attempts", d.cfg.Retry.MaxAttempts).Err(lastErr).Msg("all bank exchange attempts failed")

	return nil, fmt.Errorf("dispatcher: bank unreachable after %d attempts: %w", d.cfg.Retry.MaxAttempts, lastErr)
}

// StartSweep launches the periodic key-expiry / orphaned-terminal /
// duplicate-cache / in-flight-correlation maintenance job. Call StopSweep
// to stop it.
func (d *Dispatcher) StartSweep(ctx context.Context) error {
	if d.cfg.SweepPeriod <= 0 {
		return nil
	}
	d.cron = cron.New(cron.WithSeconds())
	spec := fmt.Sprintf("@every %s", d.cfg.SweepPeriod)
	_, err := d.cron.AddFunc(spec, func() { d.sweep(ctx) })
	if err != nil {
		return fmt.Errorf("dispatcher: scheduling sweep: %w", err)
	}
	d.cron.Start()

	return nil
}

// StopSweep halts the sweep, blocking until any in-flight run completes.
func (d *Dispatcher) StopSweep() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
}

// sweepStaleCorrelations removes any in-flight entry past its deadline,
// delivering ErrBankTimeout to its waiter as a backstop for the case where
// exchange's own deadline timer never got scheduled (heavy load, GC pause).
func (d *Dispatcher) sweepStaleCorrelations() int {
	now := time.Now()
	var stale []*inFlight

	d.pendingMu.Lock()
	for k, w := range d.pending {
		if now.After(w.deadline) {
			stale = append(stale, w)
			delete(d.pending, k)
		}
	}
	d.pendingMu.Unlock()

	for _, w := range stale {
		select {
		case w.errCh <- router.ErrBankTimeout:
		default:
		}
	}

	return len(stale)
}

func (d *Dispatcher) sweep(ctx context.Context) {
	now := time.Now().UTC()

	if d.router != nil {
		d.router.PruneDuplicates(now)
	}

	if n := d.sweepStaleCorrelations(); n > 0 {
		d.log.Warn().Int("count", n).Msg("sweep: cleaned up stale in-flight bank correlations")
	}

	expiring, err := d.repo.KeysExpiringBefore(ctx, now)
	if err != nil {
		d.log.Error().Err(err).Msg("sweep: listing expiring keys failed")
	} else {
		for _, k := range expiring {
			k.Status = store.KeyExpired
			if _, err := d.repo.SaveKey(ctx, k); err != nil {
				d.log.Error().Str("key_id", k.KeyID).Err(err).Msg("sweep: expiring key failed")

				continue
			}
			d.log.Info().Str("key_id", k.KeyID).Msg("key expired by sweep")
		}
	}

	orphans, err := d.repo.TerminalsWithoutKeys(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("sweep: listing orphaned terminals failed")

		return
	}
	for _, t := range orphans {
		d.log.Warn().Str("terminal_id", t.TerminalID).Msg("terminal has no active key")
	}

	stale, err := d.repo.TerminalsWithExpiredKeys(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("sweep: listing terminals with expired keys failed")
	} else {
		for _, t := range stale {
			d.log.Warn().Str("terminal_id", t.TerminalID).Str("key_ref", t.KeyRef).
				Msg("terminal is still pointing at an expired key")
		}
	}

	duplicates, err := d.repo.DuplicateKeyValues(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("sweep: listing duplicate key values failed")

		return
	}
	if len(duplicates) > 0 {
		d.log.Error().Int("count", len(duplicates)).Msg("duplicate key values detected across terminals")
	}
}
