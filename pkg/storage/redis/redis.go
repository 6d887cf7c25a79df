// Package redis provides a storage.Driver backed by a redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/relay/pkg/storage"
)

// Options configures the redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Driver stores values with plain GET/SET and no expiry.
type Driver struct {
	client *goredis.Client
}

// NewDriver creates a driver. No connection is made until the first call.
func NewDriver(opts Options) *Driver {
	return &Driver{
		client: goredis.NewClient(&goredis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

// Get implements storage.Driver.
func (d *Driver) Get(ctx context.Context, key string) (string, error) {
	v, err := d.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis GET %s: %w", key, err)
	}
	return v, nil
}

// Set implements storage.Driver.
func (d *Driver) Set(ctx context.Context, key, value string) error {
	if err := d.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// scanBatch is the COUNT hint for each SCAN round trip.
const scanBatch = 200

// Keys implements storage.Driver with SCAN, so it never blocks the server
// the way KEYS does.
func (d *Driver) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := d.client.Scan(ctx, 0, globEscape(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis SCAN %s*: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// globEscape quotes the SCAN MATCH metacharacters in s.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping implements storage.Driver.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis PING: %w", err)
	}
	return nil
}

// Close implements storage.Driver.
func (d *Driver) Close() error {
	return d.client.Close()
}
