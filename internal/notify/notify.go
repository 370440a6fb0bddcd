// Package notify delivers operator alerts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

// Message is one alert.
type Message struct {
	Subject string
	Body    string
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// ErrNoRecipients is returned when an SMTP notifier has nobody to send to.
var ErrNoRecipients = errors.New("no email recipients configured")

// SMTPConfig configures an SMTPNotifier.
type SMTPConfig struct {
	Host     string // Default: smtp.gmail.com
	Port     int    // Default: 587
	From     string
	Password string // application-specific password
	To       []string
	Timeout  time.Duration // Default: 15s, bounds the whole exchange
}

// SMTPNotifier sends alerts as plain-text email. Submission on 587 upgrades
// with STARTTLS when the server offers it.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(ctx context.Context, m *mail.Msg) error
	now  func() time.Time
}

// NewSMTPNotifier creates a notifier with defaults applied.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	n := &SMTPNotifier{cfg: cfg, now: time.Now}
	n.send = n.dialAndSend
	return n
}

// Notify sends msg to every configured recipient. It gives up once ctx is
// done or the configured timeout elapses, whichever comes first.
func (n *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	if len(n.cfg.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := n.compose(msg)
	if err != nil {
		return fmt.Errorf("compose email: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	if err := n.send(ctx, m); err != nil {
		return fmt.Errorf("send email to %s: %w", strings.Join(n.cfg.To, ","), err)
	}
	return nil
}

// compose builds the message. Addresses are parsed, so a From or To value
// carrying extra header lines is rejected rather than sent.
func (n *SMTPNotifier) compose(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("sender %q: %w", n.cfg.From, err)
	}
	if err := m.To(n.cfg.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	m.Subject(sanitizeHeader(msg.Subject))
	m.SetDateWithValue(n.now())
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (n *SMTPNotifier) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTimeout(n.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(deadlineDialer(n.cfg.Timeout)),
	}
	if n.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.From),
			mail.WithPassword(n.cfg.Password),
		)
	}
	c, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, m)
}

// deadlineDialer arms the connection deadline at dial time so a server that
// accepts but never sends its greeting cannot hold the caller past ctx.
func deadlineDialer(timeout time.Duration) mail.DialContextFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// Recorder keeps every message in memory. Used by tests and dry runs.
type Recorder struct {
	mu       sync.Mutex
	messages []Message

	// Err is returned by Notify when set.
	Err error
}

// Notify records msg.
func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

var (
	_ Notifier = (*SMTPNotifier)(nil)
	_ Notifier = (*Recorder)(nil)
)
