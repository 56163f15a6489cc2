package queue

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

// STOMPConfig configures a STOMP publisher.
type STOMPConfig struct {
	// URL is the broker endpoint: tcp://host:61613 (or stomp://), ssl://host:61612
	// (or stomp+ssl://), or a WebSocket endpoint such as ws://host:61614/stomp.
	URL string
	// Login and Passcode are sent in the CONNECT frame when non-empty.
	Login    string
	Passcode string
	// Host is the virtual host header. Defaults to the URL host name.
	Host string
	// HandshakeTimeout bounds the dial and the CONNECT exchange.
	HandshakeTimeout time.Duration
	// ReceiptTimeout bounds the wait for the broker's RECEIPT of a SEND or DISCONNECT.
	ReceiptTimeout time.Duration
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// DefaultSTOMPConfig returns default timeouts.
func DefaultSTOMPConfig() STOMPConfig {
	return STOMPConfig{
		HandshakeTimeout: 10 * time.Second,
		ReceiptTimeout:   10 * time.Second,
	}
}

// BrokerError is an ERROR frame returned by the broker.
type BrokerError struct {
	Message string
	Body    string
}

func (e *BrokerError) Error() string {
	if e.Body == "" {
		return "broker error: " + e.Message
	}
	return fmt.Sprintf("broker error: %s: %s", e.Message, e.Body)
}

// IsBrokerError reports whether err came from a broker ERROR frame.
func IsBrokerError(err error) bool {
	var be *BrokerError
	return errors.As(err, &be)
}

// STOMPPublisher publishes over a single STOMP session. Every SEND requests a
// receipt and Publish waits for it, so a nil error means the broker accepted
// the message. Sends are serialized. After any failure the session is dropped
// and the next Publish reconnects.
type STOMPPublisher struct {
	config STOMPConfig
	logger *log.Logger
	scheme string
	addr   string // host:port for TCP schemes

	mu        sync.Mutex // serializes sessions and sends
	conn      *stomp.Conn
	transport transport
	closed    atomic.Bool
}

// NewSTOMPPublisher creates a publisher. The connection is opened on first Publish.
func NewSTOMPPublisher(config STOMPConfig) (*STOMPPublisher, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}

	var addr string
	switch u.Scheme {
	case "ws", "wss":
	case "tcp", "stomp":
		addr = hostPort(u, "61613")
	case "ssl", "stomp+ssl":
		addr = hostPort(u, "61612")
	default:
		return nil, fmt.Errorf("unsupported broker url scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("broker url %q has no host", config.URL)
	}

	defaults := DefaultSTOMPConfig()
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if config.ReceiptTimeout <= 0 {
		config.ReceiptTimeout = defaults.ReceiptTimeout
	}
	if config.Host == "" {
		config.Host = u.Hostname()
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &STOMPPublisher{config: config, logger: logger, scheme: u.Scheme, addr: addr}, nil
}

// Publish sends msg to destination and waits for the broker's receipt.
func (p *STOMPPublisher) Publish(ctx context.Context, destination string, msg Message) error {
	if p.closed.Load() {
		return ErrClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.conn == nil {
		if err := p.connect(ctx); err != nil {
			return err
		}
	}

	opts := []func(*frame.Frame) error{
		stomp.SendOpt.Receipt,
		stomp.SendOpt.Header("persistent", "true"),
	}
	for _, k := range sortedKeys(msg.Headers) {
		opts = append(opts, stomp.SendOpt.Header(k, msg.Headers[k]))
	}

	conn := p.conn
	done := make(chan error, 1)
	go func() {
		done <- conn.Send(destination, msg.ContentType, msg.Body, opts...)
	}()

	timer := time.NewTimer(p.config.ReceiptTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = fmt.Errorf("no receipt within %v", p.config.ReceiptTimeout)
	}
	if err != nil {
		// Closing the transport also unblocks a Send still waiting for its receipt.
		p.drop()
		return fmt.Errorf("send to %s: %w", destination, brokerError(err))
	}
	return nil
}

// Close sends DISCONNECT and closes the session. Further publishes fail with ErrClosed.
func (p *STOMPPublisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}

	conn := p.conn
	done := make(chan error, 1)
	go func() { done <- conn.Disconnect() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(p.config.ReceiptTimeout):
		err = fmt.Errorf("disconnect: no receipt within %v", p.config.ReceiptTimeout)
	}
	p.drop()
	return err
}

// connect dials the broker and completes the CONNECT/CONNECTED exchange. Caller holds mu.
func (p *STOMPPublisher) connect(ctx context.Context) error {
	t, err := p.dial(ctx)
	if err != nil {
		return err
	}

	if err := t.SetDeadline(deadline(ctx, p.config.HandshakeTimeout)); err != nil {
		t.Close()
		return fmt.Errorf("set handshake deadline: %w", err)
	}

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(p.config.Host),
		stomp.ConnOpt.HeartBeat(0, 0),
	}
	if p.config.Login != "" {
		opts = append(opts, stomp.ConnOpt.Login(p.config.Login, p.config.Passcode))
	}

	conn, err := stomp.Connect(t, opts...)
	if err != nil {
		t.Close()
		return fmt.Errorf("stomp connect: %w", brokerError(err))
	}
	if err := t.SetDeadline(time.Time{}); err != nil {
		t.Close()
		return fmt.Errorf("clear handshake deadline: %w", err)
	}

	p.conn = conn
	p.transport = t
	p.logger.Printf("connected to broker %s (stomp %s)", p.config.URL, conn.Version())
	return nil
}

func (p *STOMPPublisher) dial(ctx context.Context) (transport, error) {
	switch p.scheme {
	case "ws", "wss":
		dialer := websocket.Dialer{
			HandshakeTimeout: p.config.HandshakeTimeout,
			Subprotocols:     stompSubprotocols,
		}
		conn, _, err := dialer.DialContext(ctx, p.config.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("websocket dial: %w", err)
		}
		return newWSStream(conn), nil

	case "ssl", "stomp+ssl":
		dialer := tls.Dialer{
			NetDialer: &net.Dialer{Timeout: p.config.HandshakeTimeout},
			Config:    &tls.Config{ServerName: p.config.Host, MinVersion: tls.VersionTLS12},
		}
		conn, err := dialer.DialContext(ctx, "tcp", p.addr)
		if err != nil {
			return nil, fmt.Errorf("tls dial %s: %w", p.addr, err)
		}
		return conn, nil

	default:
		dialer := net.Dialer{Timeout: p.config.HandshakeTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", p.addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", p.addr, err)
		}
		return conn, nil
	}
}

func (p *STOMPPublisher) drop() {
	if p.transport != nil {
		p.transport.Close()
	}
	p.conn = nil
	p.transport = nil
}

// brokerError turns an ERROR frame reported by the client into a *BrokerError.
func brokerError(err error) error {
	var se stomp.Error
	if errors.As(err, &se) && se.Frame != nil && se.Frame.Command == frame.ERROR {
		return &BrokerError{Message: se.Message, Body: string(se.Frame.Body)}
	}
	return err
}

func hostPort(u *url.URL, defaultPort string) string {
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// deadline is now+timeout, or the context deadline if earlier.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ Publisher = (*STOMPPublisher)(nil)
