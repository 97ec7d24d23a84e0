package consul

import (
	"fmt"

	"github.com/cockroachdb/errors"
	consulapi "github.com/hashicorp/consul/api"
)

// Registration builds the agent service definition for this process. The
// check polls /health every 10s and the service is reaped after a minute
// of failing.
func Registration(name, address string, port int) *consulapi.AgentServiceRegistration {
	checkAddr := address
	if checkAddr == "" || checkAddr == "0.0.0.0" {
		checkAddr = "127.0.0.1"
	}
	return &consulapi.AgentServiceRegistration{
		ID:      fmt.Sprintf("%s-%d", name, port),
		Name:    name,
		Address: address,
		Port:    port,
		Tags:    []string{"jobledger", "http"},
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", checkAddr, port),
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

// Register announces the service to the local agent.
func (c *Client) Register(name, address string, port int) error {
	reg := Registration(name, address, port)
	if err := c.api.Agent().ServiceRegister(reg); err != nil {
		return errors.Wrapf(err, "register %s", reg.ID)
	}
	c.serviceID = reg.ID
	return nil
}

// Deregister removes the service registered by Register, if any.
func (c *Client) Deregister() error {
	if c.serviceID == "" {
		return nil
	}
	if err := c.api.Agent().ServiceDeregister(c.serviceID); err != nil {
		return errors.Wrapf(err, "deregister %s", c.serviceID)
	}
	c.serviceID = ""
	return nil
}
