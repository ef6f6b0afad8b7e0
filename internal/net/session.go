package net

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"

	"SharedBoard/internal/engine"
)

// SessionConfig describes one participant's connection to a room.
type SessionConfig struct {
	// URL is the relay websocket endpoint, e.g. ws://host:8888/ws.
	URL         string
	RoomID      string
	Username    string
	Color       string
	PresenceTTL time.Duration

	// Reconnect re-joins the room with a fresh snapshot after the
	// connection drops. Local undo history does not survive a reconnect.
	Reconnect bool
	// MaxReconnectTime bounds the total time spent retrying. Zero retries
	// until the context is cancelled.
	MaxReconnectTime time.Duration
}

// Client runs engine sessions against a relay.
type Client struct {
	cfg    SessionConfig
	logger *slog.Logger
	opts   []engine.Option

	// OnEngine is called with every new engine before it joins, so a
	// renderer can attach to it.
	OnEngine func(*engine.Engine)
}

func NewClient(cfg SessionConfig, logger *slog.Logger, opts ...engine.Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger, opts: opts}
}

// Run connects and keeps the session alive according to the reconnect
// policy. It returns when ctx is cancelled, when reconnecting is disabled
// and the connection ends, or when retries are exhausted.
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.RoomID == "" || c.cfg.Username == "" {
		return engine.ErrMissingIdentity
	}
	if !c.cfg.Reconnect {
		_, err := c.runOnce(ctx)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.cfg.MaxReconnectTime
	b := backoff.WithContext(policy, ctx)

	operation := func() error {
		joined, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, engine.ErrMissingIdentity) {
			return backoff.Permanent(err)
		}
		if joined {
			// A session that got going earns a fresh retry budget.
			b.Reset()
		}
		if err == nil {
			err = ErrClosed
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("relay connection lost, reconnecting", "error", err, "wait", wait)
	}
	err := backoff.RetryNotify(operation, b, notify)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runOnce dials, joins and pumps messages until the connection ends. joined
// reports whether the room snapshot arrived.
func (c *Client) runOnce(ctx context.Context) (joined bool, err error) {
	conn, err := Dial(ctx, c.cfg.URL, c.logger)
	if err != nil {
		return false, err
	}

	eng, err := engine.New(engine.Config{
		RoomID:      c.cfg.RoomID,
		Username:    c.cfg.Username,
		Color:       c.cfg.Color,
		PresenceTTL: c.cfg.PresenceTTL,
	}, conn, append([]engine.Option{engine.WithLogger(c.logger)}, c.opts...)...)
	if err != nil {
		conn.Close()
		return false, fmt.Errorf("start session: %w", err)
	}
	if c.OnEngine != nil {
		c.OnEngine(eng)
	}

	stop := context.AfterFunc(ctx, func() { eng.Close() })
	defer stop()

	eng.Start()
	runErr := conn.Run(eng.HandleMessage)
	joined = eng.Status() == engine.StatusReady
	eng.Disconnect(runErr)
	return joined, runErr
}
