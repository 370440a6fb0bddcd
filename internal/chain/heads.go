package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/K-tang-mkv/bittensor-strat/internal/observability"
)

// WSConfig configures HeadWatcher behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription id.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// HeadWatcher follows new block headers over a node websocket.
type HeadWatcher struct {
	endpoint string
	config   WSConfig
	logger   *log.Logger

	requestID  atomic.Uint64
	reconnects atomic.Uint64
}

// NewHeadWatcher creates a watcher for endpoint. Nothing is dialed until Watch.
func NewHeadWatcher(endpoint string, config *WSConfig, logger *log.Logger) *HeadWatcher {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &HeadWatcher{endpoint: endpoint, config: cfg, logger: logger}
}

// Reconnects returns how many times the watcher had to redial.
func (w *HeadWatcher) Reconnects() uint64 {
	return w.reconnects.Load()
}

// Watch subscribes to new heads and delivers them on the returned channel
// until ctx is done. Dropped connections are redialed with exponential
// backoff; heads are dropped rather than blocking when the consumer is slow.
func (w *HeadWatcher) Watch(ctx context.Context) <-chan Head {
	out := make(chan Head, 16)

	go func() {
		defer close(out)

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = w.config.ReconnectDelay
		b.MaxInterval = w.config.MaxReconnectDelay
		b.MaxElapsedTime = 0

		op := func() error {
			err := w.session(ctx, out, b.Reset)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		notify := func(err error, d time.Duration) {
			w.reconnects.Add(1)
			observability.RecordWSReconnect()
			w.logger.Printf("head subscription lost: %v (redial in %s)", err, d)
		}

		_ = backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	}()

	return out
}

// session dials, subscribes and pumps headers until the connection fails.
func (w *HeadWatcher) session(ctx context.Context, out chan<- Head, onHead func()) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	var writeMu sync.Mutex
	reads := &readDeadline{conn: conn}
	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		conn.Close()
		wg.Wait()
	}()

	// Keepalive; also unblocks ReadMessage once ctx is cancelled.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(w.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				reads.cancel()
				return
			case <-ticker.C:
				writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
				conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
			}
		}
	}()

	reqID := w.requestID.Add(1)
	writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	err = conn.WriteJSON(wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "chain_subscribeNewHeads",
		Params:  []interface{}{},
	})
	writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	subID, err := w.awaitSubscription(ctx, conn, reads, reqID)
	if err != nil {
		return err
	}

	for {
		if !reads.arm(time.Now().Add(w.config.ReadTimeout)) {
			return ctx.Err()
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var notif wsNotification
		if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "chain_newHead" || notif.Params == nil {
			continue
		}
		if notif.Params.Subscription != subID {
			continue
		}

		number, err := parseBlockNumber(notif.Params.Result.Number)
		if err != nil {
			w.logger.Printf("skip head: %v", err)
			continue
		}
		onHead()

		select {
		case out <- Head{ParentHash: notif.Params.Result.ParentHash, Number: number}:
		default:
		}
	}
}

// awaitSubscription reads until the subscription confirmation for reqID arrives.
func (w *HeadWatcher) awaitSubscription(ctx context.Context, conn *websocket.Conn, reads *readDeadline, reqID uint64) (string, error) {
	deadline := time.Now().Add(w.config.SubscribeTimeout)
	for {
		if !reads.arm(deadline) {
			return "", ctx.Err()
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("await subscription: %w", err)
		}

		var resp wsSubscribeResponse
		if err := json.Unmarshal(message, &resp); err != nil || resp.ID != reqID {
			continue
		}
		if resp.Error != nil {
			return "", resp.Error
		}
		if resp.Result == "" {
			return "", errors.New("empty subscription id")
		}
		return resp.Result, nil
	}
}

// readDeadline serialises read deadline updates so a cancellation, which
// forces an immediate deadline, is never overwritten by the read loop.
type readDeadline struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	cancelled bool
}

func (r *readDeadline) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
	r.conn.SetReadDeadline(time.Now())
}

// arm sets the next read deadline. It returns false once cancelled.
func (r *readDeadline) arm(t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return false
	}
	r.conn.SetReadDeadline(t)
	return true
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type wsSubscribeResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Result  string    `json:"result"` // subscription ID
	Error   *rpcError `json:"error"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription string    `json:"subscription"`
	Result       rpcHeader `json:"result"`
}
