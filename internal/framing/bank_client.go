package framing

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/kevshake/isogateway/internal/iso8583"
)

// ErrNoConnection is returned by Receive when no connection is currently
// open: none has been dialed yet, or the last one was dropped after a
// failure that was already reported by the call that hit it. It is not
// itself a new connection failure.
var ErrNoConnection = errors.New("framing: no active bank connection")

// lengthHeaderBytes is the width of the ASCII decimal length prefix framing
// each message exchanged with the bank host, per the jPOS ASCIIChannel
// convention: 4 ASCII decimal digits of length followed by the message body.
const lengthHeaderBytes = 4

const maxBankMessageLength = 9999

// BankClient owns a single persistent TCP connection to the bank host,
// dialed lazily and redialed on the next Send (or Exchange) after a
// failure; Receive never dials.
// Callers (internal/dispatcher) serialize writes and correlate reads back
// to the request that triggered them; BankClient itself only frames and
// moves bytes over the one shared connection.
type BankClient struct {
	address string
	dict    *iso8583.Dictionary
	dialer  net.Dialer

	mu   sync.Mutex
	conn net.Conn
}

// NewBankClient returns a client bound to addr. No connection is dialed
// until the first Send or Exchange call.
func NewBankClient(address string) *BankClient {
	return &BankClient{address: address, dict: iso8583.BankDictionary}
}

func (c *BankClient) ensureConn() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := c.dialer.Dial("tcp", c.address)
	if err != nil {
		return nil, fmt.Errorf("framing: dialing bank host: %w", err)
	}
	c.conn = conn

	return conn, nil
}

func (c *BankClient) dropConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close() //nolint:errcheck
		c.conn = nil
	}
}

// Send packs and writes one ISO 8583 message on the shared connection,
// dialing it first if no connection is currently open. A write failure
// drops the connection so the next call redials.
func (c *BankClient) Send(msg *iso8583.Message) error {
	conn, err := c.ensureConn()
	if err != nil {
		return err
	}
	payload, err := iso8583.Pack(c.dict, msg)
	if err != nil {
		return fmt.Errorf("framing: encoding bank request: %w", err)
	}
	if err := writeLengthFramed(conn, payload); err != nil {
		c.dropConn()

		return fmt.Errorf("framing: writing bank request: %w", err)
	}

	return nil
}

// Receive blocks reading the next length-framed message off the shared
// connection. It returns an error (and drops the connection) if none is
// open yet or the read fails, so the caller's loop redials on the next
// Send.
func (c *BankClient) Receive() (*iso8583.Message, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNoConnection
	}

	raw, err := readLengthFramed(conn)
	if err != nil {
		c.dropConn()

		return nil, fmt.Errorf("framing: reading bank response: %w", err)
	}

	resp, err := iso8583.Unpack(c.dict, raw)
	if err != nil {
		return nil, fmt.Errorf("framing: decoding bank response: %w", err)
	}

	return resp, nil
}

// Exchange is a single-shot request/response helper built on Send/Receive:
// it reuses the shared connection if one is already open, applies deadline
// to the round trip, and suits callers that don't need the dispatcher's
// queued, correlated multi-request pipeline (tests, one-off tools).
func (c *BankClient) Exchange(msg *iso8583.Message, deadline time.Duration) (*iso8583.Message, error) {
	conn, err := c.ensureConn()
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(deadline)); err != nil {
		return nil, fmt.Errorf("framing: setting deadline: %w", err)
	}

	if err := c.Send(msg); err != nil {
		return nil, err
	}

	return c.Receive()
}

func writeLengthFramed(conn net.Conn, payload []byte) error {
	if len(payload) > maxBankMessageLength {
		return fmt.Errorf("framing: message of %d bytes exceeds %d byte header capacity", len(payload), maxBankMessageLength)
	}
	header := []byte(fmt.Sprintf("%0*d", lengthHeaderBytes, len(payload)))
	if _, err := conn.Write(header); err != nil {
		return err
	}
	_, err := conn.Write(payload)

	return err
}

func readLengthFramed(conn net.Conn) ([]byte, error) {
	header := make([]byte, lengthHeaderBytes)
	if _, err := readFull(conn, header); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(string(header))
	if err != nil {
		return nil, fmt.Errorf("framing: invalid ascii length header %q: %w", header, err)
	}
	body := make([]byte, n)
	if _, err := readFull(conn, body); err != nil {
		return nil, err
	}

	return body, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
