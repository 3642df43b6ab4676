// Package router submits intents to an HTTP swap-routing service.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rustyeddy/reversion/broker"
)

const SwapPath = "/v1/swap"

type Client struct {
	BaseURL     string // e.g. http://127.0.0.1:8088
	Token       string
	SlippageBps float64
	HTTP        *http.Client
}

type swapRequest struct {
	IntentID    string  `json:"intent_id"`
	Instrument  string  `json:"instrument"`
	Side        string  `json:"side"`
	Notional    float64 `json:"notional"`
	Quote       float64 `json:"quote"`
	SlippageBps float64 `json:"slippage_bps"`
}

type swapResponse struct {
	TxID     string    `json:"tx_id"`
	Price    float64   `json:"price"`
	Units    float64   `json:"units"`
	FilledAt time.Time `json:"filled_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is a non-2xx answer from the router.
type Error struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("router http %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap exposes the broker classification: permanent sentinels for
// refusals, nothing for retryable statuses.
func (e *Error) Unwrap() error { return e.kind }

func classify(status int, code string) error {
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return nil
	case code == "insufficient_funds":
		return broker.ErrInsufficientFunds
	case code == "invalid_instrument", status == http.StatusNotFound:
		return broker.ErrInvalidInstrument
	default:
		return broker.ErrRejected
	}
}

func (c *Client) Submit(ctx context.Context, in broker.Intent) (broker.Fill, error) {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return broker.Fill{}, err
	}
	u.Path = strings.TrimRight(u.Path, "/") + SwapPath

	body, err := json.Marshal(swapRequest{
		IntentID:    in.ID,
		Instrument:  in.Instrument,
		Side:        string(in.Side),
		Notional:    in.Notional,
		Quote:       in.Quote,
		SlippageBps: c.SlippageBps,
	})
	if err != nil {
		return broker.Fill{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return broker.Fill{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", in.ID)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return broker.Fill{}, fmt.Errorf("router submit %s: %w", in.ID, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return broker.Fill{}, fmt.Errorf("router read %s: %w", in.ID, err)
	}

	if resp.StatusCode/100 != 2 {
		var er errorResponse
		_ = json.Unmarshal(b, &er)
		if er.Message == "" {
			er.Message = strings.TrimSpace(string(b))
		}
		return broker.Fill{}, &Error{
			Status:  resp.StatusCode,
			Code:    er.Code,
			Message: er.Message,
			kind:    classify(resp.StatusCode, er.Code),
		}
	}

	var sr swapResponse
	if err := json.Unmarshal(b, &sr); err != nil {
		return broker.Fill{}, fmt.Errorf("router decode %s: %w", in.ID, err)
	}
	if sr.Price <= 0 {
		return broker.Fill{}, errors.New("router returned fill without price")
	}
	if sr.FilledAt.IsZero() {
		sr.FilledAt = time.Now().UTC()
	}
	return broker.Fill{
		IntentID: in.ID,
		TxID:     sr.TxID,
		Price:    sr.Price,
		Units:    sr.Units,
		Time:     sr.FilledAt,
	}, nil
}

var _ broker.Executor = (*Client)(nil)
