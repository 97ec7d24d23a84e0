package nomad

import (
	"github.com/cockroachdb/errors"
	nomadapi "github.com/hashicorp/nomad/api"
)

type Client struct {
	api        *nomadapi.Client
	datacenter string
}

func NewClient(addr, datacenter string) (*Client, error) {
	cfg := nomadapi.DefaultConfig()
	cfg.Address = addr

	client, err := nomadapi.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "nomad client")
	}
	if datacenter == "" {
		datacenter = "dc1"
	}
	return &Client{api: client, datacenter: datacenter}, nil
}

// Healthy checks connectivity to Nomad.
func (c *Client) Healthy() error {
	_, err := c.api.Agent().NodeName()
	return err
}

// Datacenter is where batch jobs are placed.
func (c *Client) Datacenter() string {
	return c.datacenter
}
