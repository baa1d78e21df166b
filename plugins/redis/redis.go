// Package redis implements the `cache`/`redis` reference plugin
// (§4.4/§9): a thin Plugin wrapper around go-redis/v9.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/orbitflux/flux/internal/plugin"
)

// Cache is the `cache`/`redis` Plugin implementation. Its GetClient
// returns a live *goredis.Client, matching the teacher's own style of
// handing the concrete client straight to callers rather than wrapping
// it behind a narrower interface.
type Cache struct {
	client *goredis.Client
}

// New returns a fresh, un-set-up Cache instance — the Factory the
// plugin registry calls.
func New() plugin.Plugin {
	return &Cache{}
}

func (c *Cache) Name() string { return "cache" }

// Setup reads "addr", "password", and "db" out of config and opens a
// connection, failing loudly (per the Plugin contract) if the initial
// ping doesn't succeed, mirroring the teacher's Connect pattern.
func (c *Cache) Setup(ctx context.Context, config map[string]any) error {
	addr, _ := config["addr"].(string)
	if addr == "" {
		addr = "localhost:6379"
	}
	password, _ := config["password"].(string)
	db := 0
	if v, ok := config["db"].(float64); ok {
		db = int(v)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis plugin: connect to %s: %w", addr, err)
	}

	c.client = client
	return nil
}

func (c *Cache) Teardown(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GetClient returns the live *goredis.Client, or panics if Setup
// hasn't succeeded yet (§4.4: "getClient must throw/fail loudly").
func (c *Cache) GetClient() any {
	if c.client == nil {
		panic(&plugin.NotSetUpError{LogicalKey: "cache"})
	}
	return c.client
}
