package notify

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func fakeNotifier(cfg SMTPConfig, err error) (*SMTPNotifier, *[]string) {
	var calls []string
	n := NewSMTPNotifier(cfg)
	n.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	n.send = func(_ context.Context, m *mail.Msg) error {
		var buf bytes.Buffer
		if _, werr := m.WriteTo(&buf); werr != nil {
			return werr
		}
		calls = append(calls, buf.String())
		return err
	}
	return n, &calls
}

func TestSMTPNotifier_Notify(t *testing.T) {
	n, calls := fakeNotifier(SMTPConfig{
		From:     "bot@example.com",
		Password: "app-pass",
		To:       []string{"ops@example.com"},
	}, nil)

	err := n.Notify(context.Background(), Message{
		Subject: "New Subnet Registered: 65",
		Body:    "New subnet 65 detected.\nTotal subnets: 66",
	})
	require.NoError(t, err)
	require.Len(t, *calls, 1)

	msg := (*calls)[0]
	assert.Contains(t, msg, "Subject: New Subnet Registered: 65\r\n")
	assert.Contains(t, msg, "From: <bot@example.com>\r\n")
	assert.Contains(t, msg, "To: <ops@example.com>\r\n")
	assert.Contains(t, msg, "Date: Sat, 01 Mar 2025 12:00:00 +0000\r\n")
	assert.Contains(t, msg, "New subnet 65 detected.")
	assert.Contains(t, msg, "Total subnets: 66")
}

func TestSMTPNotifier_HeaderInjection(t *testing.T) {
	n, calls := fakeNotifier(SMTPConfig{From: "a@example.com", To: []string{"c@example.com"}}, nil)

	require.NoError(t, n.Notify(context.Background(), Message{Subject: "x\r\nBcc: evil@e"}))
	assert.NotContains(t, (*calls)[0], "\r\nBcc: evil@e")

	n, calls = fakeNotifier(SMTPConfig{From: "a@example.com\r\nBcc: evil@e", To: []string{"c@example.com"}}, nil)
	assert.Error(t, n.Notify(context.Background(), Message{Subject: "s"}))
	assert.Empty(t, *calls)

	n, calls = fakeNotifier(SMTPConfig{From: "a@example.com", To: []string{"c@example.com\nBcc: evil@e"}}, nil)
	assert.Error(t, n.Notify(context.Background(), Message{Subject: "s"}))
	assert.Empty(t, *calls)
}

func TestSMTPNotifier_Errors(t *testing.T) {
	n, _ := fakeNotifier(SMTPConfig{From: "a@example.com"}, nil)
	assert.ErrorIs(t, n.Notify(context.Background(), Message{}), ErrNoRecipients)

	boom := errors.New("535 auth failed")
	n, _ = fakeNotifier(SMTPConfig{From: "a@example.com", To: []string{"c@example.com"}, Host: "mail.local", Port: 2525}, boom)
	err := n.Notify(context.Background(), Message{Subject: "s"})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, Message{}), context.Canceled)
}

// silentServer accepts connections and never sends the SMTP greeting.
func silentServer(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func TestSMTPNotifier_SilentServerHonoursContext(t *testing.T) {
	host, port := silentServer(t)
	n := NewSMTPNotifier(SMTPConfig{Host: host, Port: port, From: "a@example.com", To: []string{"c@example.com"}})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := n.Notify(ctx, Message{Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSMTPNotifier_SilentServerHonoursTimeout(t *testing.T) {
	host, port := silentServer(t)
	n := NewSMTPNotifier(SMTPConfig{
		Host:    host,
		Port:    port,
		From:    "a@example.com",
		To:      []string{"c@example.com"},
		Timeout: 300 * time.Millisecond,
	})

	start := time.Now()
	err := n.Notify(context.Background(), Message{Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Notify(context.Background(), Message{Subject: "a"}))
	require.NoError(t, r.Notify(context.Background(), Message{Subject: "b"}))

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[1].Subject)

	r.Err = errors.New("down")
	assert.Error(t, r.Notify(context.Background(), Message{}))
	assert.Len(t, r.Messages(), 2)
}
