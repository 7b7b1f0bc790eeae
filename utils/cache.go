// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"harambee/config"

	"github.com/go-redis/redis/v8"
)

var (
	// CacheClient holds payment sessions, intent locks and gateway callback results.
	CacheClient *redis.Client
	// QueueClient points at the asynq database and is only used for health checks.
	QueueClient *redis.Client
)

func newRedisClient(db int, name string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (%s): %v", name, err)
	}
	return client
}

// InitCache initializes the payment cache client.
func InitCache() {
	CacheClient = newRedisClient(config.AppConfig.RedisCacheDB, "Cache")
}

// GetCacheClient returns the payment cache client.
func GetCacheClient() *redis.Client {
	if CacheClient == nil {
		InitCache()
	}
	return CacheClient
}

// InitQueueCache initializes the client pointed at the task queue database.
func InitQueueCache() {
	QueueClient = newRedisClient(config.AppConfig.RedisQueueDB, "Queue")
}

// GetQueueClient returns the queue database client.
func GetQueueClient() *redis.Client {
	if QueueClient == nil {
		InitQueueCache()
	}
	return QueueClient
}

// InitRedis connects every Redis client used by the server.
func InitRedis() {
	InitCache()
	InitQueueCache()
}
