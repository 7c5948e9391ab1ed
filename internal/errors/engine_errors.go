package errors

import (
	"errors"
	"fmt"
)

// Category classifies engine failures by how the caller should react.
type Category string

const (
	// CategoryData covers missing or stale snapshots and insufficient
	// history. Recovery is local: skip the cycle for that instrument.
	CategoryData Category = "DATA"

	// CategoryValidation marks an ERROR-level rejection from the order
	// validator. Never retried, never mutates state.
	CategoryValidation Category = "VALIDATION"

	// CategoryExecution marks a gateway failure or unconfirmed fill. The
	// orchestrator reverts its optimistic transition and re-evaluates next
	// cycle.
	CategoryExecution Category = "EXECUTION"

	// CategoryExchange covers transport and API failures outside the
	// order path.
	CategoryExchange Category = "EXCHANGE"

	// CategoryConfig marks invalid configuration, fatal at startup.
	CategoryConfig Category = "CONFIG"

	// CategoryState marks persistence failures.
	CategoryState Category = "STATE"
)

// EngineError is a categorized error with the component and operation that
// produced it.
type EngineError struct {
	Category   Category
	Component  string
	Op         string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Op, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Op, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Underlying }

// NewDataError marks a cycle-skip condition, retryable by the next cycle.
func NewDataError(component, op, msg string, underlying error) *EngineError {
	return &EngineError{Category: CategoryData, Component: component, Op: op, Message: msg, Underlying: underlying, Retryable: true}
}

func NewValidationError(component, op, msg string) *EngineError {
	return &EngineError{Category: CategoryValidation, Component: component, Op: op, Message: msg}
}

func NewExecutionError(component, op, msg string, underlying error) *EngineError {
	return &EngineError{Category: CategoryExecution, Component: component, Op: op, Message: msg, Underlying: underlying, Retryable: true}
}

func NewExchangeError(component, op, msg string, underlying error) *EngineError {
	return &EngineError{Category: CategoryExchange, Component: component, Op: op, Message: msg, Underlying: underlying, Retryable: true}
}

func NewConfigError(component, op, msg string, underlying error) *EngineError {
	return &EngineError{Category: CategoryConfig, Component: component, Op: op, Message: msg, Underlying: underlying}
}

func NewStateError(component, op, msg string, underlying error) *EngineError {
	return &EngineError{Category: CategoryState, Component: component, Op: op, Message: msg, Underlying: underlying}
}

// CategoryOf extracts the category from an error chain, or "" when the
// chain carries no EngineError.
func CategoryOf(err error) Category {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ""
}

// IsRetryable reports whether the error chain allows a retry on a later
// cycle. Unknown errors are not retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}
