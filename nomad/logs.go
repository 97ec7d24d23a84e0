package nomad

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
)

// ReadLogs collects the full stdout or stderr of a finished task.
func (c *Client) ReadLogs(ctx context.Context, allocID, task, stream string) ([]byte, error) {
	alloc, _, err := c.api.Allocations().Info(allocID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "get allocation")
	}

	cancel := make(chan struct{})
	defer close(cancel)

	frames, errCh := c.api.AllocFS().Logs(alloc, false, task, stream, "start", 0, cancel, nil)

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return buf.Bytes(), ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return buf.Bytes(), errors.Wrapf(err, "read %s", stream)
			}
			errCh = nil
		case frame, ok := <-frames:
			if !ok {
				return buf.Bytes(), nil
			}
			if frame != nil && len(frame.Data) > 0 {
				buf.Write(frame.Data)
			}
		}
	}
}
