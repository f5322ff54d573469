package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the periodic push cadence while online
const DefaultInterval = 5 * time.Minute

// Controller owns the background sync loop started by Start
type Controller struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	engine *Engine
	logger *zap.Logger
}

// Start pushes once if online, then again on every offline-to-online
// transition and every interval while online. Passes run in the background;
// failures are logged only.
func Start(ctx context.Context, engine *Engine, conn Connectivity, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Controller{cancel: cancel, engine: engine, logger: engine.logger}

	events, unsubscribe := conn.Subscribe()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer unsubscribe()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if conn.Online() {
			c.trigger(ctx, "startup")
		}
		for {
			select {
			case <-ctx.Done():
				return
			case online := <-events:
				if online {
					c.logger.Info("Back online, syncing queued changes")
					c.trigger(ctx, "online")
				} else {
					c.logger.Info("Gone offline, changes will queue locally")
				}
			case <-ticker.C:
				if conn.Online() {
					c.trigger(ctx, "interval")
				}
			}
		}
	}()

	c.logger.Info("Sync controller started", zap.Duration("interval", interval))
	return c
}

func (c *Controller) trigger(ctx context.Context, reason string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := c.engine.SyncLeads(ctx)
		if !res.Success {
			c.logger.Warn("Background sync incomplete",
				zap.String("reason", reason),
				zap.Int("synced", res.Synced),
				zap.Int("failed", res.Failed))
			return
		}
		c.logger.Debug("Background sync done", zap.String("reason", reason), zap.Int("synced", res.Synced))
	}()
}

// Stop halts the loop and waits for in-flight passes to return
func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
	c.logger.Info("Sync controller stopped")
}
