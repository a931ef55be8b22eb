// internal/bus/nats.go
package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is what the adapters need from the bus.
type Publisher interface {
	PublishJSON(subject string, v any) error
	Close()
}

type Client struct{ nc *nats.Conn }

// Connect dials NATS. The adapters are short lived, so reconnects are bounded.
func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("snakemake-lsf"),
		nats.MaxReconnects(2),
		nats.ReconnectWait(250*time.Millisecond),
		nats.Timeout(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

// Close flushes pending publishes before closing; the process usually exits
// right after.
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.FlushTimeout(2 * time.Second)
		c.nc.Close()
	}
}

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// Noop drops everything. Used when no NATS URL is configured.
type Noop struct{}

func (Noop) PublishJSON(string, any) error { return nil }
func (Noop) Close()                        {}
