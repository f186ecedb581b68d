package hiresclient

import (
	"context"
	"errors"
	"time"
)

// StartHeartbeat runs Renew periodically until ctx is cancelled.
// It returns a channel that emits the last error (if any) and then closes on exit.
// Semantics:
// - if the daemon no longer knows the handle (lease expired): heartbeat stops
// - transient network errors: surfaced, heartbeat keeps running
// - ctx cancel: stop cleanly
func (c *Client) StartHeartbeat(ctx context.Context, h RemoteHandle, opt HeartbeatOptions) <-chan error {
	errCh := make(chan error, 1)

	if opt.Interval <= 0 {
		opt.Interval = 200 * time.Millisecond
	}
	if opt.ExtendBy <= 0 {
		opt.ExtendBy = 500 * time.Millisecond
	}

	go func() {
		defer close(errCh)

		t := time.NewTicker(opt.Interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, err := c.Renew(ctx, h, opt.ExtendBy)
				if err == nil {
					continue
				}
				var nf *HandleNotFoundError
				if errors.As(err, &nf) {
					// The sweeper already released the handle; renewing
					// can never succeed again.
					select {
					case errCh <- err:
					default:
					}
					return
				}
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return errCh
}
