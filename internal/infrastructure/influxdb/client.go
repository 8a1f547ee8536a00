package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/pbexport/internal/infrastructure/config"
)

const (
	pingTimeout = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client is a batching, non-blocking writer of export points.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	open     atomic.Bool
	onError  atomic.Pointer[func(error)]
}

// Connect pings the server and starts the batching write API.
//
// Parameters:
//   - cfg: InfluxDB configuration
//
// Returns:
//   - *Client: Client ready for WritePoint
//   - error: ErrDisabled, or ErrConnectionFailed if the ping fails
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))

	ic := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	if err := ping(context.Background(), ic); err != nil {
		ic.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   ic,
		writeAPI: ic.WriteAPI(cfg.Org, cfg.Bucket),
	}
	c.open.Store(true)
	go c.forwardErrors()
	return c, nil
}

func ping(ctx context.Context, ic influxdb2.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ok, err := ic.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// forwardErrors delivers asynchronous write errors until the write API
// shuts down.
func (c *Client) forwardErrors() {
	for err := range c.writeAPI.Errors() {
		if fn := c.onError.Load(); fn != nil {
			(*fn)(err)
		}
	}
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(fn func(error)) {
	c.onError.Store(&fn)
}

// WritePoint queues p for the next batch. Points are dropped after Close.
func (c *Client) WritePoint(p *write.Point) {
	if c.open.Load() {
		c.writeAPI.WritePoint(p)
	}
}

// Flush sends all queued points. It is a no-op after Close.
func (c *Client) Flush() {
	if c.open.Load() {
		c.writeAPI.Flush()
	}
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// IsConnected reports whether Close has not been called.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// Close flushes queued points and closes the client.
func (c *Client) Close() error {
	if c == nil || !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
