package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/brickplay-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// Channel outputs arrive at controller rate, so batches are larger and
	// flushed sooner than the client library's defaults.
	defaultBatchSize       = 500
	defaultFlushIntervalMS = 1000
)

// Client records play-session telemetry. Writes are batched and
// non-blocking; a zero Client or a closed one silently drops them, so
// callers never need to check whether telemetry is enabled.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	open atomic.Bool

	mu      sync.RWMutex
	onError func(err error)
}

// Connect pings the server at cfg.URL and starts the batching writer for
// cfg.Org and cfg.Bucket. It returns ErrDisabled when telemetry is
// switched off in the config.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))
	if err := ping(ctx, client, defaultConnectTimeout); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	c.open.Store(true)
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	opts := influxdb2.DefaultOptions().
		SetBatchSize(defaultBatchSize).
		SetFlushInterval(defaultFlushIntervalMS)
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(uint(cfg.BatchSize))
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval) * 1000)
	}
	return opts
}

func ping(ctx context.Context, client influxdb2.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("ping failed: %w", err)
	case !healthy:
		return errors.New("server not healthy")
	}
	return nil
}

// forwardErrors drains the write API's error channel until the client
// library closes it.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		hook := c.onError
		c.mu.RUnlock()
		if hook != nil {
			hook(err)
		}
	}
}

func (c *Client) write(p *write.Point) {
	if c.open.Load() {
		c.writeAPI.WritePoint(p)
	}
}

// Close flushes buffered points and releases the connection.
func (c *Client) Close() error {
	if c.client == nil || !c.open.Swap(false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ping(ctx, c.client, defaultPingTimeout); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open. It does not ping.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// SetOnError registers a hook for asynchronous write failures.
func (c *Client) SetOnError(hook func(err error)) {
	c.mu.Lock()
	c.onError = hook
	c.mu.Unlock()
}

// Flush blocks until buffered points are sent. It is a no-op once closed.
func (c *Client) Flush() {
	if c.open.Load() {
		c.writeAPI.Flush()
	}
}
