package natsx

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Client wraps a core NATS connection for the downstream event feed.
type Client struct {
	nc *nats.Conn
}

func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.Name("pgateway-feed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return &Client{nc: nc}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Drain()
	}
}

// Producer publishes JSON-encoded events. It satisfies the gateway's
// EventFeed contract.
type Producer struct {
	c *Client
}

func NewProducer(c *Client) *Producer { return &Producer{c: c} }

func (p *Producer) Publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal feed event")
	}
	if err := p.c.nc.Publish(subject, data); err != nil {
		return errors.Wrap(err, "publish "+subject)
	}
	return nil
}
