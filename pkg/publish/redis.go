package publish

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eipdev/eipdev-go/pkg/config"
)

// Redis publishes every message on the <prefix>:events channel and keeps the
// latest data message of each assembly under <prefix>:assembly:<id>.
type Redis struct {
	config config.RedisConfig

	mu     sync.RWMutex
	client *redis.Client
}

// NewRedis creates a Redis publisher.
func NewRedis(cfg config.RedisConfig) *Redis {
	return &Redis{config: cfg}
}

// Name returns "redis".
func (p *Redis) Name() string { return "redis" }

// Start connects and pings the server.
func (p *Redis) Start(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:         p.config.Address,
		Password:     p.config.Password,
		DB:           p.config.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("connect %s: %w", p.config.Address, err)
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	return nil
}

// Publish stores and publishes msg in one pipeline.
func (p *Redis) Publish(ctx context.Context, msg Message) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}

	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	pipe := client.Pipeline()
	if key := p.AssemblyKey(msg); key != "" {
		pipe.Set(ctx, key, payload, p.config.KeyTTL)
	}
	pipe.Publish(ctx, p.Channel(), payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Stop closes the client.
func (p *Redis) Stop() error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// Channel returns the pub/sub channel name.
func (p *Redis) Channel() string {
	return joinKey(p.config.Prefix, "events")
}

// AssemblyKey returns the key holding the latest data of msg's assembly, or
// "" for messages that carry no assembly data.
func (p *Redis) AssemblyKey(msg Message) string {
	if !msg.IsData() || msg.AssemblyID == 0 {
		return ""
	}
	return joinKey(p.config.Prefix, "assembly", strconv.Itoa(int(msg.AssemblyID)))
}

// joinKey joins key segments with colons, skipping empty segments.
func joinKey(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

var _ Publisher = (*Redis)(nil)
