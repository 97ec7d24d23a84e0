package consul

import (
	"github.com/cockroachdb/errors"
	consulapi "github.com/hashicorp/consul/api"
)

type Client struct {
	api       *consulapi.Client
	serviceID string
}

func NewClient(addr string) (*Client, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "consul client")
	}
	return &Client{api: client}, nil
}

// Healthy checks connectivity to Consul.
func (c *Client) Healthy() error {
	_, err := c.api.Status().Leader()
	return err
}
