package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// Submissions wait for inclusion, which takes at least one 12s block.
	DefaultSubmitTimeout = 2 * time.Minute
)

// HTTPClient implements Client using JSON-RPC 2.0 over HTTP against a
// Subtensor gateway that holds the signing keyring.
type HTTPClient struct {
	endpoint      string
	client        *http.Client
	limiter       *rate.Limiter
	maxRetries    int
	retryDelay    time.Duration
	maxDelay      time.Duration
	backoffMult   float64
	submitTimeout time.Duration
	requestID     atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for read calls.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithSubmitTimeout bounds how long a submission may wait for inclusion.
func WithSubmitTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.submitTimeout = d
	}
}

// NewHTTPClient creates a new gateway HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:      endpoint,
		client:        &http.Client{Timeout: DefaultTimeout},
		maxRetries:    DefaultMaxRetries,
		retryDelay:    DefaultRetryDelay,
		maxDelay:      DefaultMaxDelay,
		backoffMult:   DefaultBackoffMult,
		submitTimeout: DefaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("RPC error %d: %s: %s", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// dispatch decodes the error data as a dispatch failure.
// Substrate nodes report invalid transactions with a plain string such as
// "Custom error: 8"; the gateway may send the structured object instead.
func (e *rpcError) dispatch() *DispatchError {
	d := &DispatchError{Message: e.Message}
	if len(e.Data) == 0 {
		return d
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		d.Message = s
		return d
	}
	var structured DispatchError
	if err := json.Unmarshal(e.Data, &structured); err == nil {
		if structured.Message == "" {
			structured.Message = e.Message
		}
		return &structured
	}
	return d
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	return c.do(ctx, method, params, result, c.maxRetries)
}

// callOnce performs a JSON-RPC call without retries.
// Used for extrinsics: a retried submission could be included twice.
func (c *HTTPClient) callOnce(ctx context.Context, method string, params []interface{}, result interface{}) error {
	return c.do(ctx, method, params, result, 0)
}

func (c *HTTPClient) do(ctx context.Context, method string, params []interface{}, result interface{}, maxRetries int) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordRPC(method, time.Since(start).Seconds(), errorLabel(err))
	}()

	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return &Error{Kind: KindNetwork, Op: method, Err: fmt.Errorf("max retries exceeded: %w", lastErr)}
}

// errorLabel names err for the rpc error metric.
func errorLabel(err error) string {
	if err == nil {
		return ""
	}
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		return "rpc"
	}
	if k := KindOf(err); k != 0 {
		return k.String()
	}
	return "other"
}

// readError wraps a failed read call.
func readError(op string, err error) error {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		return &Error{Kind: KindRPC, Op: op, Code: rpcErr.Code, Err: rpcErr}
	}
	return err
}

// blockParams appends the block hash when one is pinned.
func blockParams(blockHash string, params ...interface{}) []interface{} {
	if blockHash != "" {
		params = append(params, blockHash)
	}
	return params
}

// Head retrieves the best block hash and its header.
func (c *HTTPClient) Head(ctx context.Context) (Head, error) {
	var hash string
	if err := c.call(ctx, "chain_getBlockHash", nil, &hash); err != nil {
		return Head{}, readError("chain_getBlockHash", err)
	}

	var header rpcHeader
	if err := c.call(ctx, "chain_getHeader", []interface{}{hash}, &header); err != nil {
		return Head{}, readError("chain_getHeader", err)
	}

	number, err := parseBlockNumber(header.Number)
	if err != nil {
		return Head{}, err
	}

	return Head{Hash: hash, ParentHash: header.ParentHash, Number: number}, nil
}

// rpcHeader is the raw substrate header.
type rpcHeader struct {
	ParentHash string `json:"parentHash"`
	Number     string `json:"number"` // hex encoded
}

func parseBlockNumber(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse block number %q: %w", s, err)
	}
	return n, nil
}

// AllSubnets retrieves dynamic info for every subnet.
func (c *HTTPClient) AllSubnets(ctx context.Context, blockHash string) ([]domain.SubnetInfo, error) {
	var result []subnetResult
	if err := c.call(ctx, "subtensor_allSubnets", blockParams(blockHash), &result); err != nil {
		return nil, readError("subtensor_allSubnets", err)
	}

	subnets := make([]domain.SubnetInfo, 0, len(result))
	for _, r := range result {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("subnet %d price %q: %w", r.Netuid, r.Price, err)
		}
		subnets = append(subnets, domain.SubnetInfo{
			Netuid:    r.Netuid,
			Name:      r.Name,
			Symbol:    r.Symbol,
			Price:     price,
			TaoIn:     domain.FromRao(r.TaoIn),
			AlphaIn:   domain.FromRao(r.AlphaIn),
			IsDynamic: r.IsDynamic,
			Burn:      domain.FromRao(r.Burn),
		})
	}

	return subnets, nil
}

// subnetResult is the raw RPC response item for subtensor_allSubnets.
type subnetResult struct {
	Netuid    uint16 `json:"netuid"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Price     string `json:"price"` // TAO per alpha, decimal string
	TaoIn     uint64 `json:"taoIn"`
	AlphaIn   uint64 `json:"alphaIn"`
	IsDynamic bool   `json:"isDynamic"`
	Burn      uint64 `json:"burn"`
}

// StakeForColdkey retrieves every stake position of a coldkey.
func (c *HTTPClient) StakeForColdkey(ctx context.Context, coldkey, blockHash string) ([]domain.StakeRecord, error) {
	var result []stakeResult
	if err := c.call(ctx, "subtensor_stakeForColdkey", blockParams(blockHash, coldkey), &result); err != nil {
		return nil, readError("subtensor_stakeForColdkey", err)
	}

	stakes := make([]domain.StakeRecord, len(result))
	for i, r := range result {
		stakes[i] = domain.StakeRecord{
			Hotkey:  r.Hotkey,
			Coldkey: r.Coldkey,
			Netuid:  r.Netuid,
			Stake:   domain.FromRao(r.Stake),
		}
	}

	return stakes, nil
}

// stakeResult is the raw RPC response item for subtensor_stakeForColdkey.
type stakeResult struct {
	Hotkey  string `json:"hotkey"`
	Coldkey string `json:"coldkey"`
	Netuid  uint16 `json:"netuid"`
	Stake   uint64 `json:"stake"`
}

// Balance retrieves the free balance of an account.
func (c *HTTPClient) Balance(ctx context.Context, address, blockHash string) (domain.Balance, error) {
	var result uint64
	if err := c.call(ctx, "subtensor_balance", blockParams(blockHash, address), &result); err != nil {
		return 0, readError("subtensor_balance", err)
	}
	return domain.FromRao(result), nil
}

// Burn retrieves the registration recycle cost of a subnet.
func (c *HTTPClient) Burn(ctx context.Context, netuid uint16, blockHash string) (domain.Balance, error) {
	var result *uint64
	if err := c.call(ctx, "subtensor_burn", blockParams(blockHash, netuid), &result); err != nil {
		return 0, readError("subtensor_burn", err)
	}
	if result == nil {
		return 0, nil
	}
	return domain.FromRao(*result), nil
}

// submitResult is the raw RPC response for every subtensor_submit* call.
type submitResult struct {
	ExtrinsicHash string         `json:"extrinsicHash"`
	BlockHash     string         `json:"blockHash"`
	Success       bool           `json:"success"`
	Error         *DispatchError `json:"error"`
}

// signerParam is the keypair material sent with a submission.
type signerParam struct {
	Address string `json:"address"`
	Seed    string `json:"seed"`
}

// CheckSigningEndpoint reports whether endpoint may receive the coldkey seed:
// https anywhere, plain http only on localhost, 127.0.0.0/8 or ::1.
func CheckSigningEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInsecureEndpoint, err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" {
			return nil
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInsecureEndpoint, u.Redacted())
}

func (c *HTTPClient) submit(ctx context.Context, method string, signer Signer, call map[string]interface{}) (*Receipt, error) {
	if signer == nil || !signer.Unlocked() {
		return nil, &Error{Kind: KindSubmissionFailed, Op: method, Err: ErrWalletLocked}
	}
	if err := CheckSigningEndpoint(c.endpoint); err != nil {
		return nil, &Error{Kind: KindSubmissionFailed, Op: method, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	params := []interface{}{
		signerParam{Address: signer.ColdkeyAddress(), Seed: signer.SecretSeed()},
		call,
	}

	var result submitResult
	if err := c.callOnce(ctx, method, params, &result); err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			return nil, submissionError(method, rpcErr.dispatch())
		}
		var ce *Error
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &Error{Kind: KindNetwork, Op: method, Err: err}
	}

	if !result.Success {
		d := result.Error
		if d == nil {
			d = &DispatchError{Message: "extrinsic failed without dispatch error"}
		}
		return nil, submissionError(method, d)
	}

	return &Receipt{ExtrinsicHash: result.ExtrinsicHash, BlockHash: result.BlockHash}, nil
}

// SubmitBoundedUnstake submits SubtensorModule.remove_stake_limit.
func (c *HTTPClient) SubmitBoundedUnstake(ctx context.Context, signer Signer, req domain.UnstakeRequest) (*Receipt, error) {
	return c.submit(ctx, "subtensor_submitRemoveStakeLimit", signer, map[string]interface{}{
		"hotkey":          req.Hotkey,
		"netuid":          req.Netuid,
		"amount_unstaked": req.Amount.Rao(),
		"limit_price":     req.LimitPriceRao(),
		"allow_partial":   req.AllowPartial,
	})
}

// SubmitUnstakeAll submits SubtensorModule.unstake_all_alpha.
func (c *HTTPClient) SubmitUnstakeAll(ctx context.Context, signer Signer, hotkey string) (*Receipt, error) {
	return c.submit(ctx, "subtensor_submitUnstakeAllAlpha", signer, map[string]interface{}{
		"hotkey": hotkey,
	})
}

// SubmitBurnedRegister submits SubtensorModule.burned_register.
func (c *HTTPClient) SubmitBurnedRegister(ctx context.Context, signer Signer, hotkey string, netuid uint16) (*Receipt, error) {
	return c.submit(ctx, "subtensor_submitBurnedRegister", signer, map[string]interface{}{
		"hotkey": hotkey,
		"netuid": netuid,
	})
}
