package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"harambee/config"
	"harambee/models"
	"harambee/services/tasks"
	"harambee/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Reconciler settles payment sessions whose tracking stopped early.
type Reconciler interface {
	Reconcile(ctx context.Context, payload models.ReconcilePayload) error
}

// ErrRetryLater marks a task the gateway has not resolved yet. It is retried without being logged as a failure.
var ErrRetryLater = errors.New("reconcile: retry later")

// QueueRedisOpt is the asynq connection shared by the worker and the enqueueing client.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewReconcileMux routes reconcile tasks to r. stillPending reports errors that only mean "not yet".
func NewReconcileMux(r Reconciler, stillPending func(error) bool) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePaymentReconcile, handleReconcileTask(r, stillPending))
	return mux
}

// InitReconcileWorker runs the reconcile worker in background. Call Shutdown on the returned server on exit.
func InitReconcileWorker(ctx context.Context, r Reconciler, stillPending func(error) bool) *asynq.Server {
	logger := utils.GetLogger().Sugar()

	srv := asynq.NewServer(
		QueueRedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			RetryDelayFunc: reconcileRetryDelay,
			IsFailure: func(err error) bool {
				return !errors.Is(err, ErrRetryLater)
			},
			Logger: logger,
		},
	)

	mux := NewReconcileMux(r, stillPending)

	go monitorRedisConnection(ctx)

	go func() {
		logger.Info("[ReconcileWorker] starting async worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Run(mux)
			if err == nil {
				break
			}
			logger.Errorf("[ReconcileWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)
			if attempts == maxAttempts {
				logger.Fatal("[ReconcileWorker] max retry attempts reached, exiting")
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()

	return srv
}

// reconcileRetryDelay backs off linearly to a five minute ceiling.
func reconcileRetryDelay(n int, err error, task *asynq.Task) time.Duration {
	d := time.Duration(n+1) * 30 * time.Second
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

func handleReconcileTask(r Reconciler, stillPending func(error) bool) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		logger := utils.GetLogger()

		p, err := tasks.ParseReconcilePayload(task)
		if err != nil || p.CheckoutRequestID == "" {
			logger.Error("[ReconcileHandler] invalid payload", zap.ByteString("payload", task.Payload()), zap.Error(err))
			return fmt.Errorf("invalid reconcile payload: %v: %w", err, asynq.SkipRetry)
		}

		logger.Info("[ReconcileHandler] reconciling payment session",
			zap.String("checkoutRequestId", p.CheckoutRequestID),
			zap.String("reason", p.Reason))

		err = r.Reconcile(ctx, p)
		switch {
		case err == nil:
			return nil
		case stillPending != nil && stillPending(err):
			logger.Debug("[ReconcileHandler] gateway still pending", zap.String("checkoutRequestId", p.CheckoutRequestID))
			return fmt.Errorf("%s: %w", p.CheckoutRequestID, ErrRetryLater)
		default:
			logger.Error("[ReconcileHandler] reconcile failed",
				zap.String("checkoutRequestId", p.CheckoutRequestID),
				zap.Error(err))
			return err
		}
	}
}

// monitorRedisConnection pings the queue database periodically to detect failures at runtime.
func monitorRedisConnection(ctx context.Context) {
	client := utils.GetQueueClient()
	logger := utils.GetLogger()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("[ReconcileWorker] Redis connection lost", zap.Error(err))
			}
		}
	}
}
