package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix namespaces room channels on a shared redis.
const DefaultChannelPrefix = "sharedboard:room:"

// BusMessage is a frame fanned out by another relay node.
type BusMessage struct {
	Room    string
	Payload []byte
}

// Bus carries room traffic between relay processes. Frames published by a
// node are never delivered back to it.
type Bus interface {
	Publish(ctx context.Context, roomID string, payload []byte) error
	Messages() <-chan BusMessage
	Close() error
}

type localBus struct {
	ch   chan BusMessage
	once sync.Once
}

// LocalBus is the bus of a relay running alone: nothing to publish to,
// nothing to receive.
func LocalBus() Bus {
	return &localBus{ch: make(chan BusMessage)}
}

func (b *localBus) Publish(context.Context, string, []byte) error { return nil }
func (b *localBus) Messages() <-chan BusMessage                  { return b.ch }
func (b *localBus) Close() error {
	b.once.Do(func() { close(b.ch) })
	return nil
}

type envelope struct {
	Node    string          `json:"node"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEnvelope(env envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return Compress(data)
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	raw, err := Decompress(data)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// RedisBus fans room traffic out through redis Pub/Sub, one channel per
// room. Envelopes are lz4 compressed; strokes are re-sent whole on every
// point so they compress well.
type RedisBus struct {
	client *redis.Client
	pubsub *redis.PubSub
	node   string
	prefix string
	out    chan BusMessage
	logger *slog.Logger
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func NewRedisBus(ctx context.Context, opts *redis.Options, prefix string, logger *slog.Logger) (*RedisBus, error) {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	b := &RedisBus{
		client: client,
		pubsub: client.PSubscribe(ctx, prefix+"*"),
		node:   uuid.NewString(),
		prefix: prefix,
		out:    make(chan BusMessage, 256),
		done:   make(chan struct{}),
	}
	b.logger = logger.With("node", b.node)
	go b.listen()
	b.logger.Info("relay bus connected", "redis", opts.Addr, "prefix", prefix)
	return b, nil
}

func (b *RedisBus) Publish(ctx context.Context, roomID string, payload []byte) error {
	data, err := encodeEnvelope(envelope{Node: b.node, Room: roomID, Payload: payload})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.prefix+roomID, data).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

func (b *RedisBus) Messages() <-chan BusMessage { return b.out }

func (b *RedisBus) listen() {
	defer close(b.out)
	for msg := range b.pubsub.Channel() {
		env, err := decodeEnvelope([]byte(msg.Payload))
		if err != nil {
			b.logger.Warn("dropped bus message", "channel", msg.Channel, "error", err)
			continue
		}
		if env.Node == b.node {
			continue
		}
		if env.Room != strings.TrimPrefix(msg.Channel, b.prefix) {
			b.logger.Warn("dropped bus message with mismatched room", "channel", msg.Channel, "room", env.Room)
			continue
		}
		select {
		case b.out <- BusMessage{Room: env.Room, Payload: env.Payload}:
		case <-b.done:
			return
		}
	}
}

// Close stops the listener and releases the redis connections. Later calls
// return the first call's result.
func (b *RedisBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.closeErr = b.pubsub.Close()
		if err := b.client.Close(); b.closeErr == nil {
			b.closeErr = err
		}
	})
	return b.closeErr
}
