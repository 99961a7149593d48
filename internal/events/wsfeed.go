package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/logging"
)

const defaultReconnectInterval = 2 * time.Second

// WSFeed consumes the remote signaling channel over a websocket and publishes
// its events onto the bus. The channel is fire-and-forget; a broken
// connection is re-dialed after a fixed interval and missed events are
// recovered by the next poll tick.
type WSFeed struct {
	url       string
	reconnect time.Duration
	bus       Publisher
	logger    zerolog.Logger
	dialer    *websocket.Dialer
}

// NewWSFeed creates a feed for the given websocket URL.
func NewWSFeed(url string, reconnect time.Duration, bus Publisher) *WSFeed {
	if reconnect <= 0 {
		reconnect = defaultReconnectInterval
	}
	return &WSFeed{
		url:       url,
		reconnect: reconnect,
		bus:       bus,
		logger:    logging.Component("ws-feed"),
		dialer:    websocket.DefaultDialer,
	}
}

// Run dials the feed and pumps events onto the bus until ctx is cancelled.
func (f *WSFeed) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.logger.Warn().Err(err).Str("url", f.url).Msg("signaling dial failed")
			if !sleepCtx(ctx, f.reconnect) {
				return
			}
			continue
		}

		f.pump(ctx, conn)
		_ = conn.Close()

		if !sleepCtx(ctx, f.reconnect) {
			return
		}
	}
}

func (f *WSFeed) pump(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Warn().Err(err).Msg("signaling read failed")
			}
			return
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			f.logger.Debug().Err(err).Msg("dropping malformed signaling event")
			continue
		}
		switch event.Type {
		case TypeMessagePosted, TypeUserChanged:
			f.bus.Publish(event)
		default:
			f.logger.Debug().Str("type", string(event.Type)).Msg("dropping unknown signaling event")
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
