// Package smtpclient opens short SMTP conversations used to probe
// recipients without sending mail.
package smtpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/optimode/emailverify/types"
)

// DialFunc opens a network connection. It is injectable for testing.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config configures a Dialer.
type Config struct {
	// HeloDomain is the name announced in EHLO/HELO. Required.
	HeloDomain string
	// ProxyAddr routes connections through a SOCKS5 proxy (host:port) when set.
	ProxyAddr string
	// ProxyUser and ProxyPassword authenticate against the proxy.
	ProxyUser     string
	ProxyPassword string
	// Dial overrides the network dialer.
	Dial DialFunc
}

// Dialer implements types.Transport.
type Dialer struct {
	helo string
	dial DialFunc
}

// New creates a Dialer.
func New(cfg Config) (*Dialer, error) {
	if cfg.HeloDomain == "" {
		return nil, errors.New("smtpclient: HeloDomain is required")
	}
	d := &Dialer{helo: cfg.HeloDomain, dial: cfg.Dial}
	if d.dial != nil {
		return d, nil
	}

	if cfg.ProxyAddr == "" {
		var nd net.Dialer
		d.dial = nd.DialContext
		return d, nil
	}

	var auth *proxy.Auth
	if cfg.ProxyUser != "" {
		auth = &proxy.Auth{User: cfg.ProxyUser, Password: cfg.ProxyPassword}
	}
	pd, err := proxy.SOCKS5("tcp", cfg.ProxyAddr, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("smtpclient: socks5 proxy %s: %w", cfg.ProxyAddr, err)
	}
	cd, ok := pd.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("smtpclient: socks5 proxy %s does not support contexts", cfg.ProxyAddr)
	}
	d.dial = cd.DialContext
	return d, nil
}

// Open connects to host:port. The timeout bounds the connect and each
// later command; cancelling ctx aborts the conversation.
func (d *Dialer) Open(ctx context.Context, host, port string, timeout time.Duration) (types.Session, error) {
	address := net.JoinHostPort(host, port)

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	netConn, err := d.dial(dialCtx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrConnect, address, err)
	}

	s := &session{
		netConn: netConn,
		text:    textproto.NewConn(netConn),
		helo:    d.helo,
		timeout: timeout,
	}
	s.stop = context.AfterFunc(ctx, func() { _ = netConn.Close() })
	return s, nil
}

type session struct {
	netConn net.Conn
	text    *textproto.Conn
	helo    string
	timeout time.Duration
	stop    func() bool

	closeOnce sync.Once
	closeErr  error
}

// Handshake reads the greeting and introduces the client, falling back
// from EHLO to HELO for servers that reject extended SMTP.
func (s *session) Handshake() error {
	if err := s.deadline(); err != nil {
		return err
	}
	code, msg, err := s.reply()
	if err != nil {
		return fmt.Errorf("read banner: %w", err)
	}
	if code != 220 {
		return fmt.Errorf("server rejected connection: %d %s", code, msg)
	}

	code, msg, err = s.command("EHLO " + s.helo)
	if err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if code >= 500 {
		code, msg, err = s.command("HELO " + s.helo)
		if err != nil {
			return fmt.Errorf("HELO failed: %w", err)
		}
	}
	if code != 250 {
		return fmt.Errorf("greeting rejected: %d %s", code, msg)
	}
	return nil
}

func (s *session) DeclareSender(address string) (types.Reply, error) {
	code, msg, err := s.command(fmt.Sprintf("MAIL FROM:<%s>", address))
	if err != nil {
		return types.Reply{}, fmt.Errorf("MAIL FROM failed: %w", err)
	}
	return types.Reply{Code: code, Text: msg}, nil
}

func (s *session) DeclareRecipient(address string) (types.Reply, error) {
	code, msg, err := s.command(fmt.Sprintf("RCPT TO:<%s>", address))
	if err != nil {
		return types.Reply{}, fmt.Errorf("RCPT TO failed: %w", err)
	}
	return types.Reply{Code: code, Text: msg}, nil
}

// Close sends QUIT (best effort) and closes the connection.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.stop()
		_ = s.netConn.SetDeadline(time.Now().Add(2 * time.Second))
		if err := s.text.PrintfLine("QUIT"); err == nil {
			_, _, _ = s.reply()
		}
		s.closeErr = s.netConn.Close()
	})
	return s.closeErr
}

func (s *session) deadline() error {
	if err := s.netConn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	return nil
}

// command sends one SMTP command line and reads the reply.
func (s *session) command(line string) (int, string, error) {
	if strings.ContainsAny(line, "\r\n") {
		return 0, "", errors.New("smtpclient: command contains line break")
	}
	if err := s.deadline(); err != nil {
		return 0, "", err
	}
	if err := s.text.PrintfLine("%s", line); err != nil {
		return 0, "", fmt.Errorf("send %s: %w", verb(line), err)
	}
	return s.reply()
}

// reply reads one reply of any code. Continuation lines are joined with
// " | ".
func (s *session) reply() (int, string, error) {
	code, msg, err := s.text.ReadResponse(0)
	if err != nil {
		return 0, "", fmt.Errorf("read SMTP reply: %w", err)
	}
	return code, strings.ReplaceAll(msg, "\n", " | "), nil
}

func verb(line string) string {
	if i := strings.IndexByte(line, ' '); i > 0 {
		return line[:i]
	}
	return line
}
