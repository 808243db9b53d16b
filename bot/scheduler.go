package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

var c *cron.Cron

// startScheduler starts the cron jobs.
func startScheduler(svc *Services) error {
	log.Println("Initializing scheduler...")
	c = cron.New()
	if _, err := c.AddFunc(svc.Config.PruneSchedule, func() { pruneCache(svc, time.Now()) }); err != nil {
		return fmt.Errorf("could not set up prune job: %w", err)
	}
	// 多实例共享数据库时，其他实例写入的覆盖配置靠这里同步
	if _, err := c.AddFunc("@hourly", func() { reloadOverrides(svc) }); err != nil {
		return fmt.Errorf("could not set up override reload job: %w", err)
	}
	c.Start()
	log.Printf("Cache prune scheduled (%s), overrides reload hourly.", svc.Config.PruneSchedule)
	return nil
}

// stopScheduler stops the cron jobs and waits for running ones.
func stopScheduler() {
	if c != nil {
		<-c.Stop().Done()
		log.Println("Scheduler stopped.")
	}
}

// pruneCache evicts entries idle for longer than the configured TTL.
func pruneCache(svc *Services, now time.Time) int {
	removed := svc.Cache.Prune(now.Add(-svc.Config.CacheTTL))
	svc.Metrics.CachePruned(removed)
	svc.Metrics.CacheSize(svc.Cache.Len())
	if removed > 0 {
		svc.Log.WithField("removed", removed).Debug("pruned idle cache entries")
	}
	return removed
}

func reloadOverrides(svc *Services) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := svc.Overrides.Load(ctx)
	if err != nil {
		svc.Log.WithError(err).Warn("failed to reload channel overrides")
		return
	}
	svc.Log.WithField("count", n).Debug("channel overrides reloaded")
}
