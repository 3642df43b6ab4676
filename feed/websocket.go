package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/market"
)

// WebSocket subscribes to a bar stream and reconnects with backoff until ctx
// is done. Messages are JSON objects:
//
//	{"instrument":"SOL/USDC","price":142.17,"time":"2024-05-01T14:00:00Z"}
//
// Anything else (acks, heartbeats) is ignored.
type WebSocket struct {
	URL         string
	Instruments []string
	Logger      *zap.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration

	// MaxReconnects stops the stream after that many consecutive failed
	// connections. Zero retries forever.
	MaxReconnects int

	Dialer *websocket.Dialer
}

type subscribe struct {
	Method      string   `json:"method"`
	Instruments []string `json:"instruments"`
}

type wireBar struct {
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Time       time.Time `json:"time"`
}

var ErrTooManyReconnects = errors.New("websocket: too many reconnects")

func (w *WebSocket) defaults() {
	if w.ReadTimeout == 0 {
		w.ReadTimeout = 60 * time.Second
	}
	if w.WriteTimeout == 0 {
		w.WriteTimeout = 10 * time.Second
	}
	if w.PingInterval == 0 {
		w.PingInterval = 20 * time.Second
	}
	if w.MinBackoff == 0 {
		w.MinBackoff = 500 * time.Millisecond
	}
	if w.MaxBackoff == 0 {
		w.MaxBackoff = 30 * time.Second
	}
	if w.Logger == nil {
		w.Logger = zap.NewNop()
	}
	if w.Dialer == nil {
		w.Dialer = websocket.DefaultDialer
	}
}

func (w *WebSocket) Stream(ctx context.Context, out chan<- market.Bar) error {
	w.defaults()
	log := w.Logger.With(zap.String("url", w.URL))

	backoff := w.MinBackoff
	failures := 0
	for {
		delivered, err := w.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			failures = 0
			backoff = w.MinBackoff
		}
		failures++
		if w.MaxReconnects > 0 && failures > w.MaxReconnects {
			return fmt.Errorf("%w: %v", ErrTooManyReconnects, err)
		}
		log.Warn("feed disconnected, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > w.MaxBackoff {
			backoff = w.MaxBackoff
		}
	}
}

// session runs one connection. delivered reports whether any bar made it
// through before the connection dropped.
func (w *WebSocket) session(ctx context.Context, out chan<- market.Bar) (delivered bool, err error) {
	conn, _, err := w.Dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	if len(w.Instruments) > 0 {
		msg, err := json.Marshal(subscribe{Method: "subscribe", Instruments: w.Instruments})
		if err != nil {
			return false, err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(w.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return false, err
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
	})
	go w.ping(sessionCtx, conn)

	wanted := map[string]bool{}
	for _, in := range w.Instruments {
		wanted[in] = true
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return delivered, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))

		var wb wireBar
		if err := json.Unmarshal(raw, &wb); err != nil || strings.TrimSpace(wb.Instrument) == "" {
			continue
		}
		if len(wanted) > 0 && !wanted[wb.Instrument] {
			continue
		}
		b := market.Bar{Instrument: wb.Instrument, Price: wb.Price, Time: wb.Time.UTC()}
		if err := b.Validate(); err != nil {
			w.Logger.Debug("dropping bad bar", zap.Error(err))
			continue
		}
		if err := send(ctx, out, b); err != nil {
			return delivered, err
		}
		delivered = true
	}
}

func (w *WebSocket) ping(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(w.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.WriteTimeout)); err != nil {
				return
			}
		}
	}
}
