// Package alert delivers fatal alerts: conditions the engine cannot resolve
// on its own, such as a position whose exit exhausted its retries.
package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type Severity string

const (
	Warning Severity = "warning"
	Fatal   Severity = "fatal"
)

type Alert struct {
	Severity   Severity  `json:"severity"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	PositionID string    `json:"position_id,omitempty"`
	Instrument string    `json:"instrument,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
	Time       time.Time `json:"time"`
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Log writes alerts to a zap logger. It never fails.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Notify(_ context.Context, a Alert) error {
	fields := []zap.Field{
		zap.String("severity", string(a.Severity)),
		zap.String("position_id", a.PositionID),
		zap.String("instrument", a.Instrument),
		zap.String("strategy", a.Strategy),
		zap.String("detail", a.Message),
	}
	if a.Severity == Fatal {
		l.Logger.Error(a.Title, fields...)
	} else {
		l.Logger.Warn(a.Title, fields...)
	}
	return nil
}

// Webhook posts alerts as JSON to a URL, in a Discord-compatible envelope:
// the alert fields plus a "content" line.
type Webhook struct {
	URL  string
	HTTP *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{URL: url, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

type webhookPayload struct {
	Content string `json:"content"`
	Alert
}

func (w *Webhook) Notify(ctx context.Context, a Alert) error {
	if w == nil || w.URL == "" {
		return nil
	}
	data, err := json.Marshal(webhookPayload{
		Content: fmt.Sprintf("[%s] %s: %s", a.Severity, a.Title, a.Message),
		Alert:   a,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alert webhook returned status: %d", resp.StatusCode)
	}
	return nil
}

type multi []Notifier

// All sends every alert to each notifier and returns the first failure.
func All(ns ...Notifier) Notifier {
	var out multi
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, a Alert) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }
