package netmon

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// HeartbeatSource feeds a Monitor from a websocket heartbeat endpoint:
// a held-open connection means online, a failed dial or dropped read means
// offline. Redials are spaced with exponential backoff.
type HeartbeatSource struct {
	url    string
	mon    *Monitor
	dialer *websocket.Dialer
	log    zerolog.Logger
}

// NewHeartbeatSource creates a heartbeat event source for mon.
func NewHeartbeatSource(url string, mon *Monitor, log zerolog.Logger) *HeartbeatSource {
	return &HeartbeatSource{
		url:    url,
		mon:    mon,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log,
	}
}

// Run dials the heartbeat endpoint and keeps the monitor's state in step
// with the connection until ctx is cancelled.
func (h *HeartbeatSource) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry forever

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := h.dialer.DialContext(ctx, h.url, nil)
		if err != nil {
			h.mon.SetStatus(StatusOffline)
			wait := bo.NextBackOff()
			h.log.Debug().Err(err).Dur("retry_in", wait).Msg("heartbeat dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		bo.Reset()
		h.mon.SetStatus(StatusOnline)
		h.readLoop(ctx, conn)
		h.mon.SetStatus(StatusOffline)
	}
}

// readLoop consumes heartbeat frames until the connection drops or ctx is
// cancelled.
func (h *HeartbeatSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
}
