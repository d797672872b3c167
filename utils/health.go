package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus is the latest snapshot of the service's external
// dependencies, served by the health endpoint.
type HealthStatus struct {
	Mongo     bool      `json:"mongo"`
	Cache     bool      `json:"cache"`
	IdemStore bool      `json:"idempotency_store"`
	CheckedAt time.Time `json:"checked_at"`
}

// Healthy reports whether every dependency answered the last probe.
func (h HealthStatus) Healthy() bool {
	return h.Mongo && h.Cache && h.IdemStore
}

var (
	currentHealth HealthStatus
	healthMu      sync.RWMutex
)

// GetHealthStatus returns the latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	healthMu.RLock()
	defer healthMu.RUnlock()
	return currentHealth
}

// StartHealthMonitor probes MongoDB and both Redis clients on an
// interval and keeps the in-memory snapshot fresh. Stops when ctx is
// cancelled.
func StartHealthMonitor(ctx context.Context, mongoClient *mongo.Client, cache, idem *redis.Client, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		snapshot := HealthStatus{
			Mongo:     mongoClient.Ping(probeCtx, nil) == nil,
			Cache:     cache.Ping(probeCtx).Err() == nil,
			IdemStore: idem.Ping(probeCtx).Err() == nil,
			CheckedAt: time.Now(),
		}

		healthMu.Lock()
		currentHealth = snapshot
		healthMu.Unlock()
	}

	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}
