// Package inmemory provides a map-backed storage.Driver for tests and
// local console sessions.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/papercomputeco/relay/pkg/storage"
)

// Driver keeps values in process memory. Nothing survives a restart.
type Driver struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{values: make(map[string]string)}
}

// Get implements storage.Driver.
func (d *Driver) Get(_ context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := d.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

// Set implements storage.Driver.
func (d *Driver) Set(_ context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.values[key] = value
	return nil
}

// Keys implements storage.Driver.
func (d *Driver) Keys(_ context.Context, prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping implements storage.Driver. The map is always reachable.
func (d *Driver) Ping(context.Context) error {
	return nil
}

// Close implements storage.Driver.
func (d *Driver) Close() error {
	return nil
}

// Len returns the number of stored keys.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.values)
}
