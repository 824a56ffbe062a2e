package framing

import (
	"net"
	"testing"
	"time"

	"github.com/kevshake/isogateway/internal/iso8583"
)

func startStubBankHost(t *testing.T, responder func(req *iso8583.Message) *iso8583.Message) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close() //nolint:errcheck

		raw, err := readLengthFramed(conn)
		if err != nil {
			return
		}
		req, err := iso8583.Unpack(iso8583.BankDictionary, raw)
		if err != nil {
			return
		}
		resp := responder(req)
		out, err := iso8583.Pack(iso8583.BankDictionary, resp)
		if err != nil {
			return
		}
		_ = writeLengthFramed(conn, out)
	}()

	return ln.Addr().String()
}

func TestBankClientExchangeRoundTrip(t *testing.T) {
	t.Parallel()
	addr := startStubBankHost(t, func(req *iso8583.Message) *iso8583.Message {
		resp := iso8583.New("0210")
		if stan, ok := req.Get(11); ok {
			resp.Set(11, stan)
		}
		resp.Set(39, "00")

		return resp
	})

	client := NewBankClient(addr)
	req := iso8583.New("0200")
	req.Set(3, "000000")
	req.Set(4, "000000005000")
	req.Set(11, "000042")
	req.Set(41, "TERM0001")

	resp, err := client.Exchange(req, time.Second)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if resp.MTI != "0210" {
		t.Errorf("MTI = %s, want 0210", resp.MTI)
	}
	if code, _ := resp.Get(39); code != "00" {
		t.Errorf("F39 = %s, want 00", code)
	}
	if stan, _ := resp.Get(11); stan != "000042" {
		t.Errorf("F11 = %s, want 000042", stan)
	}
}

func TestBankClientExchangeTimesOutWhenHostSilent(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close() //nolint:errcheck
		time.Sleep(500 * time.Millisecond)
	}()

	client := NewBankClient(ln.Addr().String())
	req := iso8583.New("0200")
	req.Set(3, "000000")
	req.Set(4, "000000005000")
	req.Set(11, "000042")
	req.Set(41, "TERM0001")

	if _, err := client.Exchange(req, 50*time.Millisecond); err == nil {
		t.Error("expected timeout error")
	}
}
