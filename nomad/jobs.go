package nomad

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	nomadapi "github.com/hashicorp/nomad/api"
)

const pollInterval = time.Second

// SubmitJob registers a job with Nomad and returns the evaluation ID.
func (c *Client) SubmitJob(job *nomadapi.Job) (string, error) {
	resp, _, err := c.api.Jobs().Register(job, nil)
	if err != nil {
		return "", errors.Wrap(err, "submit job")
	}
	return resp.EvalID, nil
}

// StopJob deregisters a job, purging it from state when purge is set.
func (c *Client) StopJob(jobID string, purge bool) error {
	_, _, err := c.api.Jobs().Deregister(jobID, purge, nil)
	return err
}

// JobAllocations returns allocations for a job.
func (c *Client) JobAllocations(jobID string) ([]*nomadapi.AllocationListStub, error) {
	allocs, _, err := c.api.Jobs().Allocations(jobID, false, nil)
	if err != nil {
		return nil, err
	}
	return allocs, nil
}

// WaitBatchComplete polls a batch job until one of its allocations reaches a
// terminal client status and returns that allocation. Transient list errors
// are retried until ctx is done.
func (c *Client) WaitBatchComplete(ctx context.Context, jobID string) (*nomadapi.AllocationListStub, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			allocs, err := c.JobAllocations(jobID)
			if err != nil {
				continue
			}
			for _, a := range allocs {
				if isTerminal(a.ClientStatus) {
					return a, nil
				}
			}
		}
	}
}

func isTerminal(status string) bool {
	switch status {
	case nomadapi.AllocClientStatusComplete, nomadapi.AllocClientStatusFailed, nomadapi.AllocClientStatusLost:
		return true
	}
	return false
}
