package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultPollInterval = 2 * time.Second

// IdentitySource yields the saved default identity, "" while none is set.
type IdentitySource interface {
	DefaultIdentity(ctx context.Context) string
}

// WatchIdentity polls source at a fixed cadence until it yields an identity,
// then switches the controller to it. The poll stops once an identity is
// found, when ctx is done or when the controller is closed. It returns
// immediately.
func (c *Controller) WatchIdentity(ctx context.Context, source IdentitySource, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if c.adoptIdentity(ctx, source) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (c *Controller) adoptIdentity(ctx context.Context, source IdentitySource) bool {
	identity := source.DefaultIdentity(ctx)
	if identity == "" {
		return false
	}
	if identity == c.Identity() {
		return true
	}
	c.log.Info("default identity found", zap.String("identity", identity))
	if err := c.SetIdentity(ctx, identity); err != nil {
		c.log.Warn("failed to switch to default identity", zap.String("identity", identity), zap.Error(err))
	}
	return true
}
