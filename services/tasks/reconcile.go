package tasks

import (
	"encoding/json"
	"time"

	"harambee/models"

	"github.com/hibiken/asynq"
)

const TypePaymentReconcile = "payment:reconcile"

// Reconcile reasons.
const (
	ReasonClientCancel    = "client_cancel"
	ReasonShutdown        = "shutdown"
	ReasonSettlementRetry = "settlement_retry"
)

func NewReconcileTask(payload models.ReconcilePayload, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypePaymentReconcile, b)
	opts := []asynq.Option{
		asynq.ProcessIn(delay),
		asynq.MaxRetry(10),
		asynq.Timeout(30 * time.Second),
		asynq.TaskID(payload.CheckoutRequestID + ":" + payload.Reason),
	}

	return task, opts, nil
}

func ParseReconcilePayload(task *asynq.Task) (models.ReconcilePayload, error) {
	var p models.ReconcilePayload
	err := json.Unmarshal(task.Payload(), &p)
	return p, err
}
