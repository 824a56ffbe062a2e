// Package router implements MTI-driven transaction routing: field
// validation, PIN transposition, business caps, bank forwarding, and
// response composition.
package router

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevshake/isogateway/internal/cardvalidator"
	"github.com/kevshake/isogateway/internal/iso8583"
	"github.com/kevshake/isogateway/internal/keychange"
	"github.com/kevshake/isogateway/internal/logging"
	"github.com/kevshake/isogateway/internal/pintranspose"
	"github.com/kevshake/isogateway/internal/respcode"
	"github.com/kevshake/isogateway/internal/store"
)

// BankSubmitter is the dispatcher-facing seam the router forwards financial
// requests through; it is satisfied by internal/dispatcher.Dispatcher.
type BankSubmitter interface {
	Submit(ctx context.Context, posMsg *iso8583.Message) (*iso8583.Message, error)
}

// ErrBankTimeout is the sentinel a BankSubmitter returns when the bank did
// not answer within the configured deadline.
var ErrBankTimeout = fmt.Errorf("router: bank timeout")

// echoedFields are copied verbatim from request to response before the
// handler sets its own outcome fields.
var echoedFields = []int{2, 3, 4, 11, 12, 13, 14, 22, 25, 37, 41, 42, 43, 49}

const duplicateWindow = 5 * time.Minute

// Config carries the security/business policy toggles the router consults.
type Config struct {
	GatewayZonalKey        string
	DefaultTerminalKey     string // fallback PIN-transposition key for a terminal with no key on file
	EnablePinTransposition bool
	EnableCardValidation   bool
	RejectInvalidCard      bool
	EnableKeyChange        bool
	KeyChange              keychange.Config
}

// Router dispatches decoded POS messages, applying validation, PIN
// transposition, business caps, and bank forwarding before composing a
// response.
type Router struct {
	cfg    Config
	repo   store.Repository
	dial   BankSubmitter
	log    zerolog.Logger
	seenMu sync.Mutex
	seen   map[string]time.Time
}

// New builds a Router. dial may be nil if bank forwarding is never needed
// (e.g. in tests exercising only network-management traffic).
func New(cfg Config, repo store.Repository, dial BankSubmitter) *Router {
	return &Router{cfg: cfg, repo: repo, dial: dial, log: zerolog.Nop(), seen: make(map[string]time.Time)}
}

// SetBankSubmitter wires the bank forwarding seam after construction, for
// callers that must build the Router before its dispatcher exists (the
// dispatcher's cron sweep in turn needs a PruneableRouter).
func (r *Router) SetBankSubmitter(dial BankSubmitter) {
	r.dial = dial
}

// SetLogger wires the transaction-result logger after construction,
// following the same late-binding pattern as SetBankSubmitter.
func (r *Router) SetLogger(log zerolog.Logger) {
	r.log = log
}

// logOutcome narrates the final F39 response code through
// internal/respcode's POS_CODES table and records it via
// internal/logging.LogResult, keyed by the request's STAN.
func (r *Router) logOutcome(req, resp *iso8583.Message) {
	stan, _ := req.Get(11)
	code, _ := resp.Get(39)
	entry := respcode.POSCode(code)
	logging.LogResult(r.log, stan, code, entry.Description)
}

// PruneDuplicates drops duplicate-cache entries older than the detection
// window, called periodically by the cron sweep in internal/dispatcher.
func (r *Router) PruneDuplicates(now time.Time) {
	r.seenMu.Lock()
	defer r.seenMu.Unlock()
	for k, t := range r.seen {
		if now.Sub(t) > duplicateWindow {
			delete(r.seen, k)
		}
	}
}

func (r *Router) isDuplicate(stan, localDate string) bool {
	key := stan + "|" + localDate
	r.seenMu.Lock()
	defer r.seenMu.Unlock()
	if t, ok := r.seen[key]; ok && time.Since(t) <= duplicateWindow {
		return true
	}
	r.seen[key] = time.Now()

	return false
}

func mintRRN() string {
	ms := time.Now().UnixMilli() % 1_000_000_000_000
	return fmt.Sprintf("%012d", ms)
}

func mintAuthCode() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("router: minting auth code: %w", err)
	}
	n := (int(b[0])<<16 | int(b[1])<<8 | int(b[2])) % 1_000_000

	return fmt.Sprintf("%06d", n), nil
}

func baseResponse(req *iso8583.Message, responseMTI string) *iso8583.Message {
	resp := iso8583.New(responseMTI)
	for _, n := range echoedFields {
		if v, ok := req.Get(n); ok {
			resp.Set(n, v)
		}
	}

	return resp
}

// Route processes one decoded POS message and returns the response to send
// back to the terminal, or nil when the MTI is an advice that generates no
// reply.
func (r *Router) Route(ctx context.Context, req *iso8583.Message) (*iso8583.Message, error) {
	switch req.MTI {
	case "0100":
		return r.routeFinancial(ctx, req, "0110")
	case "0200":
		return r.routeFinancial(ctx, req, "0210")
	case "0220":
		_, err := r.routeFinancial(ctx, req, "0210")

		return nil, err
	case "0400":
		return r.routeFinancial(ctx, req, "0410")
	case "0420":
		_, err := r.routeFinancial(ctx, req, "0410")

		return nil, err
	case "0800":
		return r.routeNetworkManagement(ctx, req)
	default:
		resp := iso8583.New("0210")
		resp.Set(39, "12")

		return resp, nil
	}
}

func amountExceeds(amountField string, limit int64) bool {
	v, err := strconv.ParseInt(amountField, 10, 64)
	if err != nil {
		return true
	}

	return v > limit
}

// applyBusinessCaps returns the response code for a processing code / amount
// pair, per the fixed cap table.
func applyBusinessCaps(processingCode, amount string) string {
	switch processingCode {
	case "000000": // purchase
		if amountExceeds(amount, 100000) {
			return "61"
		}

		return "00"
	case "010000": // cash advance
		if amountExceeds(amount, 50000) {
			return "61"
		}

		return "00"
	case "200000", "310000", "400000", "500000": // refund/inquiry/payment/transfer
		if amountExceeds(amount, 1000000) {
			return "61"
		}

		return "00"
	default:
		return "12"
	}
}

func (r *Router) routeFinancial(ctx context.Context, req *iso8583.Message, responseMTI string) (resp *iso8583.Message, err error) {
	resp = baseResponse(req, responseMTI)
	defer func() {
		if resp != nil {
			r.logOutcome(req, resp)
		}
	}()

	if stan, ok := req.Get(11); ok {
		date, _ := req.Get(13)
		if r.isDuplicate(stan, date) {
			resp.Set(39, "94")

			return resp, nil
		}
	}

	if pan, ok := req.Get(2); ok && r.cfg.EnableCardValidation {
		result := cardvalidator.Validate(pan)
		if !result.Valid && r.cfg.RejectInvalidCard {
			resp.Set(39, "14")

			return resp, nil
		}
	}

	if pinBlock, ok := req.Get(52); ok && r.cfg.EnablePinTransposition {
		pan, _ := req.Get(2)
		terminalKey, err := r.terminalKeyFor(ctx, req)
		if err != nil {
			resp.Set(39, "96")

			return resp, nil
		}
		newBlock, err := pintranspose.Transpose(terminalKey, r.cfg.GatewayZonalKey, pinBlock, pan)
		if err != nil {
			resp.Set(39, "96")

			return resp, nil
		}
		req.Set(52, newBlock)
	}

	processingCode, _ := req.Get(3)
	amount, ok := req.Get(4)
	if !ok {
		amount = "000000000000"
	}
	code := applyBusinessCaps(processingCode, amount)
	if code != "00" {
		resp.Set(39, code)

		return resp, nil
	}

	shouldForward := responseMTI == "0110" || responseMTI == "0210" || responseMTI == "0410"
	if shouldForward && r.dial != nil {
		bankResp, err := r.dial.Submit(ctx, req)
		if err != nil {
			if err == ErrBankTimeout {
				resp.Set(39, "91")

				return resp, nil
			}
			resp.Set(39, "96")

			return resp, nil
		}
		if bankCode, ok := bankResp.Get(39); ok {
			resp.Set(39, bankCode)
			if bankCode != "00" {
				return resp, nil
			}
		}
	}

	resp.Set(39, "00")
	resp.Set(37, mintRRN())
	authCode, err := mintAuthCode()
	if err != nil {
		return nil, err
	}
	resp.Set(38, authCode)

	return resp, nil
}

func (r *Router) terminalKeyFor(ctx context.Context, req *iso8583.Message) (string, error) {
	terminalID, ok := req.Get(41)
	if !ok {
		return "", fmt.Errorf("router: missing terminal id")
	}
	terminal, err := r.repo.FindTerminal(ctx, terminalID)
	if err != nil {
		return "", fmt.Errorf("router: terminal lookup: %w", err)
	}
	if terminal.KeyRef == "" {
		if r.cfg.DefaultTerminalKey != "" {
			return r.cfg.DefaultTerminalKey, nil
		}

		return "", fmt.Errorf("router: terminal has no active key")
	}
	key, err := r.repo.FindKey(ctx, terminal.KeyRef)
	if err != nil {
		return "", fmt.Errorf("router: key lookup: %w", err)
	}

	return key.Value, nil
}

func (r *Router) routeNetworkManagement(ctx context.Context, req *iso8583.Message) (resp *iso8583.Message, err error) {
	resp = baseResponse(req, "0810")
	defer func() { r.logOutcome(req, resp) }()
	pc, _ := req.Get(3)

	switch pc {
	case "990000", "990001", "990002": // sign-on, sign-off, echo
		if terminalID, ok := req.Get(41); ok {
			if t, err := r.repo.FindTerminal(ctx, terminalID); err == nil {
				t.LastActivity = time.Now().UTC()
				_, _ = r.repo.SaveTerminal(ctx, t)
			}
		}
		resp.Set(39, "00")

		return resp, nil

	case "900000": // key change
		if !r.cfg.EnableKeyChange {
			resp.Set(39, "12")

			return resp, nil
		}
		terminalID, _ := req.Get(41)
		merchantID, _ := req.Get(42)
		result, err := keychange.Process(ctx, r.repo, r.cfg.KeyChange, terminalID, merchantID)
		if err != nil {
			resp.Set(39, "14")

			return resp, nil
		}
		resp.Set(53, "KEY_ID:"+result.KeyID)
		resp.Set(39, "00")

		return resp, nil

	case "900001": // terminal status
		terminalID, _ := req.Get(41)
		t, err := r.repo.FindTerminal(ctx, terminalID)
		if err != nil {
			resp.Set(39, "14")

			return resp, nil
		}
		resp.Set(53, fmt.Sprintf("STATUS:%s,KEYS:%s,CHANGES:%d", t.Status, t.KeyRef, t.KeyChangeCount))
		resp.Set(39, "00")

		return resp, nil

	default:
		resp.Set(39, "12")

		return resp, nil
	}
}
