// Package broker defines the execution adapter the lifecycle engine hands
// trade intents to, plus the retry policy wrapped around it.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Intent is a requested trade action. Retries of the same action reuse the
// same ID so executors can deduplicate.
type Intent struct {
	ID         string    `json:"id"`
	PositionID string    `json:"position_id"`
	Instrument string    `json:"instrument"`
	Strategy   string    `json:"strategy"`
	Side       Side      `json:"side"`
	Notional   float64   `json:"notional"`
	Quote      float64   `json:"quote"` // last observed price when the intent was created
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (i Intent) String() string {
	return fmt.Sprintf("%s %s %s %.2f @ %.6f (%s)", i.ID, i.Side, i.Instrument, i.Notional, i.Quote, i.Strategy)
}

// Fill is a confirmed execution.
type Fill struct {
	IntentID string    `json:"intent_id"`
	TxID     string    `json:"tx_id"`
	Price    float64   `json:"price"`
	Units    float64   `json:"units"`
	Time     time.Time `json:"time"`
}

// Executor is the sole channel to the swap-routing service.
type Executor interface {
	Submit(ctx context.Context, in Intent) (Fill, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, in Intent) (Fill, error)

func (f ExecutorFunc) Submit(ctx context.Context, in Intent) (Fill, error) { return f(ctx, in) }

// Permanent failures. Anything else, including timeouts, is transient.
var (
	ErrRejected          = errors.New("intent rejected")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidInstrument = errors.New("invalid instrument")
)

// IsPermanent reports whether retrying err can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidInstrument)
}
