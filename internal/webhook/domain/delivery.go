package domain

import (
	"errors"
	"time"
)

// State is the lifecycle of one delivery: pending, retrying(n), then delivered or failed.
type State string

const (
	StatePending   State = "pending"
	StateRetrying  State = "retrying"
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
)

var ErrEndpointNotConfigured = errors.New("webhook_endpoint_not_configured")

// Delivery tracks attempts for one payload.
type Delivery struct {
	ID          string
	State       State
	Attempts    int
	MaxAttempts int
	LastErr     error
}

func NewDelivery(id string, maxAttempts int) *Delivery {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Delivery{ID: id, State: StatePending, MaxAttempts: maxAttempts}
}

// Done reports whether the delivery reached a terminal state.
func (d *Delivery) Done() bool {
	return d.State == StateDelivered || d.State == StateFailed
}

// Record applies the outcome of one attempt. Timeouts retry like any other
// transport error; the caller aborts when its own context has ended.
func (d *Delivery) Record(err error) {
	if d.Done() {
		return
	}
	d.Attempts++
	switch {
	case err == nil:
		d.State = StateDelivered
		d.LastErr = nil
	case d.Attempts >= d.MaxAttempts:
		d.State = StateFailed
		d.LastErr = err
	default:
		d.State = StateRetrying
		d.LastErr = err
	}
}

// Abort fails the delivery without counting an attempt.
func (d *Delivery) Abort(err error) {
	if d.Done() {
		return
	}
	d.State = StateFailed
	d.LastErr = err
}

// Backoff is the wait before the retry that follows the given attempt number.
func Backoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * base
}

// DeliveryResult is the per-show outcome handed back to the caller.
type DeliveryResult struct {
	EntryID      string `json:"entry_id,omitempty"`
	IdentityHash string `json:"identity_hash"`
	Success      bool   `json:"success"`
	DeliveryID   string `json:"delivery_id"`
	Attempts     int    `json:"attempts"`
	Error        string `json:"error,omitempty"`
}
