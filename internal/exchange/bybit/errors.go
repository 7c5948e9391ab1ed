package bybit

import (
	"encoding/json"
	"errors"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// Well-known Bybit v5 return codes the adapter reacts to.
const (
	codeRateLimitExceeded   = 10006
	codeInsufficientBalance = 110007
	codeMarketClosed        = 110043
)

// APIError is a non-zero retCode returned by the exchange.
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit: %s: %s (code %d)", e.Op, e.Msg, e.Code)
}

// Retryable reports whether the call may succeed if repeated. Rate limits
// and server-side failures (5xx-range codes) qualify; everything else is a
// request problem that retrying cannot fix.
func (e *APIError) Retryable() bool {
	return e.Code == codeRateLimitExceeded || (e.Code >= 500 && e.Code < 600)
}

// IsInsufficientBalance reports whether the error chain carries the
// exchange's insufficient balance code.
func IsInsufficientBalance(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == codeInsufficientBalance
}

// decodeResult checks the response envelope and unmarshals its result
// field into out.
func decodeResult(op string, response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("bybit: %s: unexpected response type %T", op, response)
	}
	if serverResp.RetCode != 0 {
		return &APIError{Op: op, Code: serverResp.RetCode, Msg: serverResp.RetMsg}
	}
	raw, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("bybit: %s: marshal result: %w", op, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bybit: %s: unmarshal result: %w", op, err)
	}
	return nil
}
