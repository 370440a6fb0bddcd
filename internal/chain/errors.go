package chain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrWalletLocked is returned when a submission is attempted with a locked coldkey.
var ErrWalletLocked = errors.New("wallet coldkey is locked")

// ErrInsecureEndpoint is returned when key material would travel to a
// gateway over plain HTTP on a non-loopback host.
var ErrInsecureEndpoint = errors.New("signing requires an https endpoint or a loopback host")

// CustomErrSlippageTooHigh is the SubtensorModule custom error index raised
// when a limit order cannot fill at the requested price and partial fills are disabled.
const CustomErrSlippageTooHigh = 8

// Kind classifies chain failures.
type Kind int

const (
	// KindNetwork covers transport failures after retries are exhausted.
	KindNetwork Kind = iota + 1
	// KindRPC covers gateway errors on read calls.
	KindRPC
	// KindSubmissionFailed covers rejected or failed extrinsics.
	KindSubmissionFailed
	// KindToleranceExceeded is a rejected limit order.
	KindToleranceExceeded
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindRPC:
		return "rpc error"
	case KindSubmissionFailed:
		return "submission failed"
	case KindToleranceExceeded:
		return "price tolerance exceeded"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by Client implementations.
type Error struct {
	Kind Kind
	Op   string
	// Code is the gateway error code or the pallet custom error index.
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 if err is not a chain error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// IsToleranceExceeded reports whether err is a rejected limit order.
func IsToleranceExceeded(err error) bool {
	return KindOf(err) == KindToleranceExceeded
}

// DispatchError is the structured failure payload attached to a rejected extrinsic.
type DispatchError struct {
	Module  string `json:"module,omitempty"`
	Name    string `json:"name,omitempty"`
	Custom  *int   `json:"custom,omitempty"`
	Message string `json:"message,omitempty"`
}

func (d *DispatchError) Error() string {
	switch {
	case d.Module != "" && d.Name != "":
		return fmt.Sprintf("%s.%s", d.Module, d.Name)
	case d.Custom != nil:
		return fmt.Sprintf("Custom error: %d", *d.Custom)
	default:
		return d.Message
	}
}

var customErrRe = regexp.MustCompile(`Custom error: (\d+)`)

// customIndex extracts the pallet custom error index, preferring the structured field.
func (d *DispatchError) customIndex() (int, bool) {
	if d.Custom != nil {
		return *d.Custom, true
	}
	m := customErrRe.FindStringSubmatch(d.Message)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// submissionError classifies a dispatch failure.
func submissionError(op string, d *DispatchError) *Error {
	if idx, ok := d.customIndex(); ok {
		kind := KindSubmissionFailed
		if idx == CustomErrSlippageTooHigh {
			kind = KindToleranceExceeded
		}
		return &Error{Kind: kind, Op: op, Code: idx, Err: d}
	}
	return &Error{Kind: KindSubmissionFailed, Op: op, Err: d}
}
