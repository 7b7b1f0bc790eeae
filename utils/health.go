package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Mongo         bool      `json:"mongo"`
	Redis         []bool    `json:"redis"`
	Gateway       string    `json:"gateway"`
	ActivePollers int       `json:"activePollers"`
	CheckedAt     time.Time `json:"checkedAt"`
}

// HealthProbe exposes the dependency state the monitor cannot ping directly.
type HealthProbe struct {
	Gateway       func() string
	ActivePollers func() int
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// CheckHealth pings every dependency once and stores the snapshot.
func CheckHealth(ctx context.Context, redisClients []*redis.Client, mongoClient *mongo.Client, probe HealthProbe) HealthStatus {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var redisHealth []bool
	for _, client := range redisClients {
		redisHealth = append(redisHealth, client.Ping(pingCtx).Err() == nil)
	}

	status := HealthStatus{
		Mongo:     mongoClient != nil && mongoClient.Ping(pingCtx, nil) == nil,
		Redis:     redisHealth,
		CheckedAt: time.Now(),
	}
	if probe.Gateway != nil {
		status.Gateway = probe.Gateway()
	}
	if probe.ActivePollers != nil {
		status.ActivePollers = probe.ActivePollers()
	}

	mu.Lock()
	currentHealth = status
	mu.Unlock()
	return status
}

// StartHealthMonitor performs periodic health checks until ctx is cancelled.
func StartHealthMonitor(ctx context.Context, redisClients []*redis.Client, mongoClient *mongo.Client, probe HealthProbe) {
	CheckHealth(ctx, redisClients, mongoClient, probe)

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				CheckHealth(ctx, redisClients, mongoClient, probe)
			}
		}
	}()
}
