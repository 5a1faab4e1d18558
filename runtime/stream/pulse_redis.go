package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

// redisPulseClient implements PulseClient over a real Redis connection,
// opening a goa.design/pulse stream per session on first use.
type redisPulseClient struct {
	redis  *redis.Client
	maxLen int
}

// NewRedisPulseClient constructs a PulseClient backed by redisClient, with
// Pulse streams capped at maxLen entries (0 uses Pulse's own default).
func NewRedisPulseClient(redisClient *redis.Client, maxLen int) PulseClient {
	return &redisPulseClient{redis: redisClient, maxLen: maxLen}
}

func (c *redisPulseClient) Stream(name string) (PulseStream, error) {
	if name == "" {
		return nil, errors.New("stream: pulse stream name is required")
	}
	var opts []streamopts.Stream
	if c.maxLen > 0 {
		opts = append(opts, streamopts.WithStreamMaxLen(c.maxLen))
	}
	s, err := streaming.NewStream(name, c.redis, opts...)
	if err != nil {
		return nil, fmt.Errorf("stream: open pulse stream %q: %w", name, err)
	}
	return redisPulseStream{stream: s}, nil
}

func (c *redisPulseClient) Close(context.Context) error { return nil }

type redisPulseStream struct {
	stream *streaming.Stream
}

func (s redisPulseStream) Add(ctx context.Context, event string, payload []byte) (string, error) {
	return s.stream.Add(ctx, event, payload)
}
